package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	dataarticles "autoslug/app/internal/data/articles"
	"autoslug/app/internal/data/database"
	"autoslug/app/internal/data/migrations"
	domainarticles "autoslug/app/internal/domain/articles"
	"autoslug/app/internal/platform/config"
	applog "autoslug/app/internal/platform/log"
	presentationhttp "autoslug/app/internal/presentation/http"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	ArticleService domainarticles.Service
	HTTPServer     *presentationhttp.Server
	Database       *gorm.DB
	Cleanup        func() error
}

// Build composes the application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	db, err := database.Open(database.Options{
		Path:    deps.Config.DBPath,
		Logger:  applog.NewGormLogger(deps.Logger),
		Plugins: []gorm.Plugin{dataarticles.Plugin(deps.Logger)},
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := database.Close(db); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := migrations.Apply(ctx, db, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running migrations"))
	}

	repo, err := dataarticles.NewRepository(db, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating article repository"))
	}

	articleService, err := domainarticles.NewService(repo, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating article service"))
	}

	httpServer, err := presentationhttp.NewServer(presentationhttp.Options{
		ArticleService: articleService,
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
		RateLimiter: presentationhttp.RateLimiterSettings{
			Burst:             deps.Config.RateLimit.Burst,
			RequestsPerSecond: deps.Config.RateLimit.RequestsPerSecond,
			ClientTTL:         deps.Config.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return database.Close(db)
	}

	return Result{
		ArticleService: articleService,
		HTTPServer:     httpServer,
		Database:       db,
		Cleanup:        cleanup,
	}, nil
}
