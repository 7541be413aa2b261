// Package migrations owns the database schema. Versioned SQL files are
// embedded and applied with goose; Render produces new migration files from
// Gorm models so slug columns carry their unique index and field settings.
package migrations

import (
	"context"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autoslug/app/internal/data/database"
)

//go:embed sql/*.sql
var files embed.FS

// FS returns the embedded migration files rooted at the migration directory.
func FS() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		// The directory is embedded at compile time.
		panic(err)
	}
	return sub
}

// Apply runs every pending migration and logs each applied version.
func Apply(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	return ApplyFS(ctx, db, FS(), logger)
}

// ApplyFS runs every pending migration found in fsys.
func ApplyFS(ctx context.Context, db *gorm.DB, fsys fs.FS, logger *logrus.Logger) error {
	logFields := logrus.Fields{"component": "migrations.apply"}

	provider, err := newProvider(db, fsys)
	if err != nil {
		return err
	}

	if logger != nil {
		logger.WithFields(logFields).Info("applying schema migrations")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("schema migration failed")
		}
		return eris.Wrap(err, "applying migrations")
	}

	logResults(logger, logFields, results)
	if logger != nil {
		logger.WithFields(logFields).WithField("applied", len(results)).Info("schema migrations complete")
	}

	return nil
}

// Reset rolls every applied migration back.
func Reset(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	logFields := logrus.Fields{"component": "migrations.reset"}

	provider, err := newProvider(db, FS())
	if err != nil {
		return err
	}

	results, err := provider.DownTo(ctx, 0)
	if err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("schema reset failed")
		}
		return eris.Wrap(err, "resetting migrations")
	}

	logResults(logger, logFields, results)
	return nil
}

// Version reports the highest applied migration version.
func Version(ctx context.Context, db *gorm.DB) (int64, error) {
	provider, err := newProvider(db, FS())
	if err != nil {
		return 0, err
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "reading migration version")
	}
	return version, nil
}

func newProvider(db *gorm.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	sqlDB, err := database.SQLDB(db)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return nil, eris.Wrap(err, "creating goose provider")
	}
	return provider, nil
}

func logResults(logger *logrus.Logger, fields logrus.Fields, results []*goose.MigrationResult) {
	if logger == nil {
		return
	}

	for _, result := range results {
		if result == nil || result.Source == nil {
			continue
		}
		logger.WithFields(fields).WithFields(logrus.Fields{
			"version":   result.Source.Version,
			"direction": result.Direction,
			"duration":  result.Duration.String(),
		}).Info("migration applied")
	}
}
