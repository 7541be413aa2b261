package migrations

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"autoslug/app/internal/autoslug"
)

const annotationPrefix = "-- autoslug:"

// Annotation is the slug configuration recorded for one column of a
// rendered migration.
type Annotation struct {
	Table  string
	Column string
	Field  autoslug.Field
}

// Render writes a goose SQL migration creating the tables of models. Every
// autoslug column gets a unique index, unless it allows duplicates, and an
// annotation line carrying its tag so the configuration survives in the
// migration history.
func Render(db *gorm.DB, models ...interface{}) ([]byte, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if len(models) == 0 {
		return nil, eris.New("at least one model is required")
	}

	var up, down bytes.Buffer
	for i, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, eris.Wrapf(err, "parsing model %T", model)
		}

		slugFields, err := autoslug.Fields(db, model)
		if err != nil {
			return nil, eris.Wrapf(err, "reading slug fields of %T", model)
		}

		if i > 0 {
			up.WriteString("\n")
		}
		renderTable(&up, db, stmt, slugFields)
	}

	for i := len(models) - 1; i >= 0; i-- {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(models[i]); err != nil {
			return nil, eris.Wrapf(err, "parsing model %T", models[i])
		}
		fmt.Fprintf(&down, "DROP TABLE IF EXISTS %s;\n", stmt.Quote(stmt.Schema.Table))
	}

	var out bytes.Buffer
	out.WriteString("-- +goose Up\n")
	out.Write(up.Bytes())
	out.WriteString("\n-- +goose Down\n")
	out.Write(down.Bytes())
	return out.Bytes(), nil
}

func renderTable(buf *bytes.Buffer, db *gorm.DB, stmt *gorm.Statement, slugFields map[string]autoslug.Field) {
	sch := stmt.Schema
	table := sch.Table
	migrator := db.Migrator()

	columns := make([]string, 0, len(sch.DBNames))
	inlinePrimaryKey := false
	for _, name := range sch.DBNames {
		field := sch.FieldsByDBName[name]
		if field == nil || field.IgnoreMigration {
			continue
		}

		expr := migrator.FullDataTypeOf(field)
		dataType := expr.SQL
		if len(expr.Vars) > 0 {
			dataType = db.Dialector.Explain(expr.SQL, expr.Vars...)
		}
		if strings.Contains(strings.ToUpper(dataType), "PRIMARY KEY") {
			inlinePrimaryKey = true
		}
		columns = append(columns, fmt.Sprintf("  %s %s", stmt.Quote(name), dataType))
	}

	if !inlinePrimaryKey && len(sch.PrimaryFieldDBNames) > 0 {
		quoted := make([]string, 0, len(sch.PrimaryFieldDBNames))
		for _, name := range sch.PrimaryFieldDBNames {
			quoted = append(quoted, stmt.Quote(name))
		}
		columns = append(columns, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	fmt.Fprintf(buf, "CREATE TABLE IF NOT EXISTS %s (\n%s\n);\n", stmt.Quote(table), strings.Join(columns, ",\n"))

	for _, name := range sch.DBNames {
		field := sch.FieldsByDBName[name]
		if field == nil || field.IgnoreMigration {
			continue
		}

		slugField, isSlug := slugFields[name]
		unique := hasSetting(field, "UNIQUEINDEX") || (isSlug && !slugField.AllowDuplicates)
		if !unique && !hasSetting(field, "INDEX") {
			continue
		}

		keyword := "INDEX"
		if unique {
			keyword = "UNIQUE INDEX"
		}
		fmt.Fprintf(buf, "CREATE %s IF NOT EXISTS %s ON %s (%s);\n",
			keyword,
			stmt.Quote(fmt.Sprintf("idx_%s_%s", table, name)),
			stmt.Quote(table),
			stmt.Quote(name),
		)
	}

	columnsWithSlugs := make([]string, 0, len(slugFields))
	for column := range slugFields {
		columnsWithSlugs = append(columnsWithSlugs, column)
	}
	sort.Strings(columnsWithSlugs)
	for _, column := range columnsWithSlugs {
		fmt.Fprintf(buf, "%s %s.%s %s\n", annotationPrefix, table, column, slugFields[column].Tag())
	}
}

func hasSetting(field *schema.Field, key string) bool {
	_, ok := field.TagSettings[key]
	return ok
}

// ParseAnnotations reads the slug configuration back out of a migration
// produced by Render.
func ParseAnnotations(src []byte) ([]Annotation, error) {
	var annotations []Annotation

	scanner := bufio.NewScanner(bytes.NewReader(src))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		rest, ok := strings.CutPrefix(strings.TrimLeft(text, " \t"), annotationPrefix)
		if !ok {
			continue
		}

		target, tag, found := strings.Cut(strings.TrimLeft(rest, " "), " ")
		if !found {
			return nil, eris.Errorf("line %d: annotation without tag", line)
		}
		table, column, found := strings.Cut(target, ".")
		if !found || table == "" || column == "" {
			return nil, eris.Errorf("line %d: annotation target must be table.column, got %q", line, target)
		}

		field, err := autoslug.ParseTag(tag)
		if err != nil {
			return nil, eris.Wrapf(err, "line %d", line)
		}

		annotations = append(annotations, Annotation{Table: table, Column: column, Field: field})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scanning migration")
	}

	return annotations, nil
}
