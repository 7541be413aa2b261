package autoslug

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autoslug/app/internal/slug"
)

// assignment derives slugs for the rows of a single statement. Slugs handed out
// earlier in the statement are reserved so a batch insert cannot collide with
// itself.
type assignment struct {
	plugin   *Plugin
	db       *gorm.DB
	ctx      context.Context
	reserved map[string]map[string]struct{}
}

func newAssignment(p *Plugin, db *gorm.DB) *assignment {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &assignment{
		plugin:   p,
		db:       db,
		ctx:      ctx,
		reserved: map[string]map[string]struct{}{},
	}
}

func (a *assignment) assign(rv reflect.Value, fields []*boundField) error {
	for _, f := range fields {
		current, _ := f.slug.ValueOf(a.ctx, rv)
		if stringValue(current) != "" && !f.Overwrite {
			continue
		}

		base := a.base(rv, f)
		value := base
		if !f.AllowDuplicates {
			var err error
			value, err = a.unique(rv, f, base)
			if err != nil {
				return err
			}
		}

		if err := f.slug.Set(a.ctx, rv, value); err != nil {
			return eris.Wrapf(err, "setting slug on %s.%s", a.db.Statement.Table, f.slug.DBName)
		}
		a.reserve(f, value)

		a.plugin.logDebug(logrus.Fields{
			"table":  a.db.Statement.Table,
			"column": f.slug.DBName,
			"slug":   value,
		}, "slug assigned")
	}
	return nil
}

func (a *assignment) base(rv reflect.Value, f *boundField) string {
	parts := make([]string, 0, len(f.sources))
	for _, source := range f.sources {
		value, _ := source.ValueOf(a.ctx, rv)
		parts = append(parts, stringValue(value))
	}

	sep := f.separator()
	base := slug.TrimSeparator(a.plugin.slugify(strings.Join(parts, " "), sep), sep)
	return slug.Truncate(base, f.MaxLength, sep)
}

// unique returns base when it is free, otherwise base-2, base-3 and so on. An
// empty base is never free because an empty slug marks the column as unset.
func (a *assignment) unique(rv reflect.Value, f *boundField, base string) (string, error) {
	prefix := base + f.separator()

	taken, err := a.taken(rv, f, base, prefix)
	if err != nil {
		return "", err
	}

	free := func(candidate string) (bool, error) {
		if _, ok := a.reserved[f.slug.DBName][candidate]; ok {
			return false, nil
		}
		if candidate == base || strings.HasPrefix(candidate, prefix) {
			_, used := taken[candidate]
			return !used, nil
		}
		// Shortened to fit MaxLength, so outside the prefetched range.
		used, err := a.exists(rv, f, candidate)
		return !used, err
	}

	if base != "" {
		ok, err := free(base)
		if err != nil {
			return "", err
		}
		if ok {
			return base, nil
		}
	}

	for n := 2; ; n++ {
		candidate, fits := f.candidate(base, n)
		if !fits {
			return "", eris.Wrapf(ErrSlugsExhausted, "%s.%s with base %q", a.db.Statement.Table, f.slug.DBName, base)
		}
		ok, err := free(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
}

func (a *assignment) taken(rv reflect.Value, f *boundField, base, prefix string) (map[string]struct{}, error) {
	column := f.slug.DBName
	quoted := a.db.Statement.Quote(column)
	condition := fmt.Sprintf(`(%s = ? OR %s LIKE ? ESCAPE '\')`, quoted, quoted)
	pattern := escapeLike(prefix) + "%"

	taken := map[string]struct{}{}
	for _, table := range a.plugin.scopeOf(a.db.Statement.Table) {
		var slugs []string
		err := a.scope(rv, table).Where(condition, base, pattern).Pluck(column, &slugs).Error
		if err != nil {
			fields := logrus.Fields{"table": table, "column": column, "base": base}
			a.plugin.logError(fields, err, "querying existing slugs")
			return nil, eris.Wrapf(err, "querying existing slugs in %s", table)
		}
		for _, s := range slugs {
			taken[s] = struct{}{}
		}
	}
	return taken, nil
}

func (a *assignment) exists(rv reflect.Value, f *boundField, candidate string) (bool, error) {
	column := f.slug.DBName
	condition := fmt.Sprintf("%s = ?", a.db.Statement.Quote(column))

	for _, table := range a.plugin.scopeOf(a.db.Statement.Table) {
		var count int64
		if err := a.scope(rv, table).Where(condition, candidate).Count(&count).Error; err != nil {
			fields := logrus.Fields{"table": table, "column": column, "slug": candidate}
			a.plugin.logError(fields, err, "checking slug existence")
			return false, eris.Wrapf(err, "checking slug %s in %s", candidate, table)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// scope opens a fresh query on table inside the running statement's connection.
// Soft-deleted rows are included since they still hold their slug. On the
// record's own table the record itself is excluded.
func (a *assignment) scope(rv reflect.Value, table string) *gorm.DB {
	q := a.db.Session(&gorm.Session{NewDB: true}).Unscoped().Table(table)

	if table != a.db.Statement.Table {
		return q
	}
	if pk := a.db.Statement.Schema.PrioritizedPrimaryField; pk != nil {
		if value, zero := pk.ValueOf(a.ctx, rv); !zero {
			q = q.Where(fmt.Sprintf("%s <> ?", a.db.Statement.Quote(pk.DBName)), value)
		}
	}
	return q
}

func (a *assignment) reserve(f *boundField, value string) {
	column := f.slug.DBName
	if a.reserved[column] == nil {
		a.reserved[column] = map[string]struct{}{}
	}
	a.reserved[column][value] = struct{}{}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
