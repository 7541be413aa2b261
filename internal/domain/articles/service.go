package articles

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"autoslug/app/internal/slug"
)

var (
	// ErrNotFound indicates no article holds the requested slug.
	ErrNotFound = eris.New("article not found")
	// ErrSlugTaken indicates another article already uses the slug.
	ErrSlugTaken = eris.New("slug already in use")
	// ErrInvalidSlug indicates a slug with characters outside a-z, 0-9 and '-'.
	ErrInvalidSlug = eris.New("invalid slug")
	// ErrSlugRequired indicates a blank slug argument.
	ErrSlugRequired = eris.New("slug is required")
	// ErrTitleTooLong indicates a title above the column size.
	ErrTitleTooLong = eris.New("title too long")
)

const maxTitleLength = 255

// Service defines the article operations exposed to transports.
type Service interface {
	Create(ctx context.Context, title string, featured bool) (*Article, error)
	Get(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context) ([]Article, error)
	Count(ctx context.Context) (int64, error)
	Rename(ctx context.Context, slug, title string) (*Article, error)
	ChangeSlug(ctx context.Context, slug, newSlug string) (*Article, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the article service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("article repository is required")
	}

	return &service{
		repo:      repo,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

func (s *service) Create(ctx context.Context, title string, featured bool) (*Article, error) {
	trimmedTitle := strings.TrimSpace(title)
	if len([]rune(trimmedTitle)) > maxTitleLength {
		return nil, eris.Wrapf(ErrTitleTooLong, "title exceeds %d characters", maxTitleLength)
	}

	article := &Article{Title: trimmedTitle, Featured: featured}
	if err := s.repo.Create(ctx, article); err != nil {
		s.recordError(logrus.Fields{"title": trimmedTitle, "featured": featured}, err, "creating article")
		return nil, eris.Wrap(err, "creating article")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"component": "articles.service",
			"slug":      article.Slug,
			"featured":  featured,
		}).Info("article created")
	}

	return article, nil
}

func (s *service) Get(ctx context.Context, slug string) (*Article, error) {
	trimmedSlug := strings.TrimSpace(slug)
	if trimmedSlug == "" {
		return nil, ErrSlugRequired
	}

	article, err := s.repo.GetBySlug(ctx, trimmedSlug)
	if err != nil {
		s.recordError(logrus.Fields{"slug": trimmedSlug}, err, "retrieving article")
		return nil, eris.Wrapf(err, "retrieving article: %s", trimmedSlug)
	}
	if article == nil {
		return nil, eris.Wrapf(ErrNotFound, "retrieving article: %s", trimmedSlug)
	}

	return article, nil
}

func (s *service) List(ctx context.Context) ([]Article, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		s.recordError(nil, err, "listing articles")
		return nil, eris.Wrap(err, "listing articles")
	}
	return list, nil
}

func (s *service) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		s.recordError(nil, err, "counting articles")
		return 0, eris.Wrap(err, "counting articles")
	}
	return count, nil
}

func (s *service) Rename(ctx context.Context, slug, title string) (*Article, error) {
	trimmedSlug := strings.TrimSpace(slug)
	if trimmedSlug == "" {
		return nil, ErrSlugRequired
	}

	trimmedTitle := strings.TrimSpace(title)
	if len([]rune(trimmedTitle)) > maxTitleLength {
		return nil, eris.Wrapf(ErrTitleTooLong, "title exceeds %d characters", maxTitleLength)
	}

	article, err := s.repo.Rename(ctx, trimmedSlug, trimmedTitle)
	if err != nil {
		s.recordError(logrus.Fields{"slug": trimmedSlug}, err, "renaming article")
		return nil, eris.Wrapf(err, "renaming article: %s", trimmedSlug)
	}
	if article == nil {
		return nil, eris.Wrapf(ErrNotFound, "renaming article: %s", trimmedSlug)
	}

	return article, nil
}

func (s *service) ChangeSlug(ctx context.Context, current, next string) (*Article, error) {
	trimmedCurrent := strings.TrimSpace(current)
	if trimmedCurrent == "" {
		return nil, ErrSlugRequired
	}

	trimmedNext := strings.TrimSpace(next)
	if !slug.Valid(trimmedNext) {
		return nil, eris.Wrapf(ErrInvalidSlug, "changing slug to %q", trimmedNext)
	}

	article, err := s.repo.SetSlug(ctx, trimmedCurrent, trimmedNext)
	if err != nil {
		if !eris.Is(err, ErrSlugTaken) {
			s.recordError(logrus.Fields{"slug": trimmedCurrent, "new_slug": trimmedNext}, err, "changing article slug")
		}
		return nil, eris.Wrapf(err, "changing slug of %s", trimmedCurrent)
	}
	if article == nil {
		return nil, eris.Wrapf(ErrNotFound, "changing slug of %s", trimmedCurrent)
	}

	return article, nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
