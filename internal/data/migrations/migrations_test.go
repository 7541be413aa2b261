package migrations_test

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"autoslug/app/internal/autoslug"
	articledata "autoslug/app/internal/data/articles"
	"autoslug/app/internal/data/database"
	"autoslug/app/internal/data/migrations"
)

type legacyRecord struct {
	ID         uint
	OtherField string `gorm:"column:otherfield;size:64"`
	Slug       string `gorm:"size:64" autoslug:"populate_from:otherfield;separator:_;max_length:40"`
}

func (legacyRecord) TableName() string {
	return "legacy_records"
}

type tagRecord struct {
	ID    uint
	Label string
	Slug  string `autoslug:"populate_from:Label;allow_duplicates"`
}

func TestApplyAndResetEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)

	require.NoError(t, migrations.Apply(ctx, db, silentLogger()))
	for _, table := range []string{"articles", "featured_articles"} {
		assert.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}

	version, err := migrations.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// A second run finds nothing pending.
	require.NoError(t, migrations.Apply(ctx, db, silentLogger()))

	require.NoError(t, migrations.Reset(ctx, db, silentLogger()))
	for _, table := range []string{"articles", "featured_articles"} {
		assert.False(t, db.Migrator().HasTable(table), "expected table %s to be dropped", table)
	}
}

func TestEmbeddedMigrationMatchesArticleRecords(t *testing.T) {
	t.Parallel()

	db := openDB(t)

	src, err := fs.ReadFile(migrations.FS(), "00001_create_articles.sql")
	require.NoError(t, err)

	annotations, err := migrations.ParseAnnotations(src)
	require.NoError(t, err)

	got := make(map[string]autoslug.Field, len(annotations))
	for _, annotation := range annotations {
		got[annotation.Table+"."+annotation.Column] = annotation.Field
	}

	want := make(map[string]autoslug.Field)
	for _, model := range articledata.Models() {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))

		fields, err := autoslug.Fields(db, model)
		require.NoError(t, err)
		for column, field := range fields {
			want[stmt.Schema.Table+"."+column] = field
		}
	}

	assert.Equal(t, want, got)
}

func TestRenderedMigrationAppliesAndDerivesSlugs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t, articledata.Plugin(silentLogger()))

	src, err := migrations.Render(db, articledata.Models()...)
	require.NoError(t, err)

	rendered := string(src)
	assert.True(t, strings.HasPrefix(rendered, "-- +goose Up\n"))
	assert.Contains(t, rendered, "CREATE TABLE IF NOT EXISTS `articles`")
	assert.Contains(t, rendered, "CREATE UNIQUE INDEX IF NOT EXISTS `idx_articles_slug` ON `articles` (`slug`);")
	assert.Contains(t, rendered, "CREATE UNIQUE INDEX IF NOT EXISTS `idx_featured_articles_slug` ON `featured_articles` (`slug`);")
	assert.Contains(t, rendered, "CREATE INDEX IF NOT EXISTS `idx_articles_deleted_at` ON `articles` (`deleted_at`);")
	assert.Contains(t, rendered, "-- autoslug: articles.slug populate_from:Title\n")
	assert.Contains(t, rendered, "-- +goose Down\nDROP TABLE IF EXISTS `featured_articles`;\nDROP TABLE IF EXISTS `articles`;\n")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00001_articles.sql"), src, 0o600))
	require.NoError(t, migrations.ApplyFS(ctx, db, os.DirFS(dir), silentLogger()))

	parent := &articledata.ArticleRecord{Title: "foo"}
	require.NoError(t, db.Create(parent).Error)
	child := &articledata.FeaturedArticleRecord{ArticleRecord: articledata.ArticleRecord{Title: "foo"}}
	require.NoError(t, db.Create(child).Error)

	assert.Equal(t, "foo", parent.Slug)
	assert.Equal(t, "foo-2", child.Slug)

	// The unique index is the final guard against direct writes.
	err = db.Create(&articledata.ArticleRecord{Title: "bar", Slug: "foo"}).Error
	assert.Error(t, err)
}

func TestRenderedStatementsAreReexecutable(t *testing.T) {
	t.Parallel()

	db := openDB(t)

	src, err := migrations.Render(db, &legacyRecord{})
	require.NoError(t, err)

	up, _, found := strings.Cut(strings.TrimPrefix(string(src), "-- +goose Up\n"), "-- +goose Down")
	require.True(t, found)

	for i := 0; i < 2; i++ {
		for _, statement := range strings.Split(up, ";\n") {
			if strings.TrimSpace(stripComments(statement)) == "" {
				continue
			}
			require.NoError(t, db.Exec(statement).Error, "run %d: %s", i, statement)
		}
	}

	assert.True(t, db.Migrator().HasTable("legacy_records"))
	assert.True(t, db.Migrator().HasIndex("legacy_records", "idx_legacy_records_slug"))
}

func TestAnnotationsRoundTripFieldSettings(t *testing.T) {
	t.Parallel()

	db := openDB(t)

	src, err := migrations.Render(db, &legacyRecord{}, &tagRecord{})
	require.NoError(t, err)

	annotations, err := migrations.ParseAnnotations(src)
	require.NoError(t, err)
	require.Len(t, annotations, 2)

	assert.Equal(t, migrations.Annotation{
		Table:  "legacy_records",
		Column: "slug",
		Field: autoslug.Field{
			PopulateFrom: []string{"otherfield"},
			Separator:    "_",
			MaxLength:    40,
		},
	}, annotations[0])

	assert.Equal(t, "tag_records", annotations[1].Table)
	assert.Equal(t, []string{"Label"}, annotations[1].Field.PopulateFrom)
	assert.True(t, annotations[1].Field.AllowDuplicates)

	// Columns that allow duplicates keep no unique index.
	assert.NotContains(t, string(src), "idx_tag_records_slug")
}

func TestParseAnnotationsRejectsMalformedLines(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing tag":    "-- autoslug: articles.slug\n",
		"missing column": "-- autoslug: articles populate_from:Title\n",
		"bad tag":        "-- autoslug: articles.slug separator:_\n",
	}

	for name, src := range cases {
		_, err := migrations.ParseAnnotations([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestRenderRequiresModels(t *testing.T) {
	t.Parallel()

	_, err := migrations.Render(openDB(t))
	assert.Error(t, err)
}

func stripComments(statement string) string {
	lines := strings.Split(statement, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func openDB(t *testing.T, plugins ...gorm.Plugin) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Options{
		Path:    filepath.Join(t.TempDir(), "migrations.db"),
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		Plugins: plugins,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := database.Close(db); err != nil {
			t.Errorf("closing database failed: %v", err)
		}
	})

	return db
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
