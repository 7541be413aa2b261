// Package autoslug provides a gorm plugin that fills slug columns from other
// fields on save and keeps them unique with numeric suffixes.
//
// A model opts in through a struct tag on a string column:
//
//	type Article struct {
//		gorm.Model
//		Title string
//		Slug  string `gorm:"uniqueIndex" autoslug:"populate_from:Title"`
//	}
//
// Saving two articles titled "foo" yields the slugs "foo" and "foo-2". A slug
// that is already set is left alone unless the tag asks for overwrite.
package autoslug

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"autoslug/app/internal/slug"
)

const (
	pluginName     = "autoslug"
	createCallback = "autoslug:before_create"
	updateCallback = "autoslug:before_update"
)

// ErrSlugsExhausted is returned when every suffixed slug that fits within
// max_length is already taken.
var ErrSlugsExhausted = eris.New("no free slug within max_length")

// SlugifyFunc turns a source value into a base slug using the given separator.
type SlugifyFunc func(source, separator string) string

// Plugin registers the slug derivation callbacks on a gorm.DB.
type Plugin struct {
	logger  *logrus.Logger
	slugify SlugifyFunc
	groups  [][]interface{}

	// scopes maps a table to every table sharing its uniqueness scope.
	scopes map[string][]string
	fields sync.Map
}

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger attaches a logger used for debug and error entries.
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Plugin) {
		p.logger = logger
	}
}

// WithSlugify replaces the default normalization.
func WithSlugify(fn SlugifyFunc) Option {
	return func(p *Plugin) {
		if fn != nil {
			p.slugify = fn
		}
	}
}

// ShareScope makes the given models check each other's tables for collisions.
// Use it when one model embeds another but is stored in its own table.
func ShareScope(models ...interface{}) Option {
	return func(p *Plugin) {
		if len(models) > 1 {
			p.groups = append(p.groups, models)
		}
	}
}

// New constructs the plugin. Register it with db.Use.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		slugify: defaultSlugify,
		scopes:  map[string][]string{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ gorm.Plugin = (*Plugin)(nil)

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return pluginName
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := p.resolveScopes(db); err != nil {
		return err
	}

	err := db.Callback().Create().
		After("gorm:before_create").
		Before("gorm:create").
		Register(createCallback, p.beforeCreate)
	if err != nil {
		return eris.Wrap(err, "registering create callback")
	}

	err = db.Callback().Update().
		After("gorm:before_update").
		Before("gorm:update").
		Register(updateCallback, p.beforeUpdate)
	if err != nil {
		return eris.Wrap(err, "registering update callback")
	}

	return nil
}

// Fields returns the slug columns declared on model, keyed by column name.
func Fields(db *gorm.DB, model interface{}) (map[string]Field, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, eris.Wrapf(err, "parsing model %T", model)
	}

	bound, err := bindFields(stmt.Schema)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Field, len(bound))
	for _, f := range bound {
		out[f.slug.DBName] = f.Field
	}
	return out, nil
}

func (p *Plugin) resolveScopes(db *gorm.DB) error {
	for _, group := range p.groups {
		tables := make([]string, 0, len(group))
		for _, model := range group {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(model); err != nil {
				return eris.Wrapf(err, "parsing scope model %T", model)
			}
			tables = appendMissing(tables, stmt.Schema.Table)
		}

		for _, table := range tables {
			current := p.scopes[table]
			if len(current) == 0 {
				current = []string{table}
			}
			p.scopes[table] = appendMissing(current, tables...)
		}
	}
	return nil
}

func (p *Plugin) scopeOf(table string) []string {
	if tables, ok := p.scopes[table]; ok {
		return tables
	}
	return []string{table}
}

func (p *Plugin) beforeCreate(db *gorm.DB) {
	p.populate(db)
}

func (p *Plugin) beforeUpdate(db *gorm.DB) {
	// Only Save of a stored record derives. Column updates and partial
	// Updates calls are explicit writes.
	if !savesRecord(db.Statement) {
		return
	}
	p.populate(db)
}

func (p *Plugin) populate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}

	fields, err := p.fieldsOf(db.Statement.Schema)
	if err != nil {
		db.AddError(err)
		return
	}
	if len(fields) == 0 {
		return
	}

	run := newAssignment(p, db)
	rv := db.Statement.ReflectValue

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(rv.Index(i))
			if elem.Kind() != reflect.Struct {
				continue
			}
			if err := run.assign(elem, fields); err != nil {
				db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := run.assign(rv, fields); err != nil {
			db.AddError(err)
		}
	}
}

type boundField struct {
	Field
	slug    *schema.Field
	sources []*schema.Field
}

func (p *Plugin) fieldsOf(sch *schema.Schema) ([]*boundField, error) {
	if cached, ok := p.fields.Load(sch); ok {
		return cached.([]*boundField), nil
	}

	bound, err := bindFields(sch)
	if err != nil {
		return nil, err
	}

	p.fields.Store(sch, bound)
	return bound, nil
}

func bindFields(sch *schema.Schema) ([]*boundField, error) {
	var bound []*boundField
	for _, field := range sch.Fields {
		tag, ok := field.Tag.Lookup(TagName)
		if !ok {
			continue
		}

		cfg, err := ParseTag(tag)
		if err != nil {
			return nil, eris.Wrapf(err, "parsing autoslug tag on %s.%s", sch.Name, field.Name)
		}
		if field.DBName == "" {
			return nil, eris.Errorf("autoslug field %s.%s is not a column", sch.Name, field.Name)
		}
		if field.FieldType.Kind() != reflect.String {
			return nil, eris.Errorf("autoslug field %s.%s must be a string, got %s", sch.Name, field.Name, field.FieldType)
		}

		bf := &boundField{Field: cfg, slug: field}
		for _, name := range cfg.PopulateFrom {
			source := sch.LookUpField(name)
			if source == nil {
				return nil, eris.Errorf("autoslug field %s.%s: unknown populate_from field %s", sch.Name, field.Name, name)
			}
			bf.sources = append(bf.sources, source)
		}
		bound = append(bound, bf)
	}

	return bound, nil
}

func (p *Plugin) logDebug(fields logrus.Fields, message string) {
	if p.logger == nil {
		return
	}
	p.logger.WithFields(fields).WithField("component", pluginName).Debug(message)
}

func (p *Plugin) logError(fields logrus.Fields, err error, message string) {
	if p.logger == nil || err == nil {
		return
	}
	p.logger.WithFields(fields).WithField("component", pluginName).WithField("error", err.Error()).Error(message)
}

func defaultSlugify(source, separator string) string {
	return slug.Make(source, slug.Separator(separator))
}

// savesRecord reports whether the statement is Save writing every column of a
// record that already has a primary key. Updates with a struct sets Model to
// Dest too, so the pointer check alone cannot tell the two apart.
func savesRecord(stmt *gorm.Statement) bool {
	dest := reflect.ValueOf(stmt.Dest)
	model := reflect.ValueOf(stmt.Model)
	if dest.Kind() != reflect.Ptr || model.Kind() != reflect.Ptr {
		return false
	}
	if dest.Pointer() != model.Pointer() {
		return false
	}

	selectsAll := false
	for _, column := range stmt.Selects {
		if column == "*" {
			selectsAll = true
			break
		}
	}
	if !selectsAll {
		return false
	}

	rv := stmt.ReflectValue
	if rv.Kind() != reflect.Struct || stmt.Schema == nil || len(stmt.Schema.PrimaryFields) == 0 {
		return false
	}
	for _, pk := range stmt.Schema.PrimaryFields {
		if _, zero := pk.ValueOf(stmt.Context, rv); zero {
			return false
		}
	}
	return true
}

func appendMissing(list []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, existing := range list {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			list = append(list, value)
		}
	}
	return list
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.Indirect(reflect.ValueOf(value))
	if !rv.IsValid() {
		return ""
	}
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(rv.Interface())
}
