package articles

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	domainarticles "autoslug/app/internal/domain/articles"
)

// Repository persists articles using a Gorm database connection.
type Repository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &Repository{db: db, logger: logger}, nil
}

var _ domainarticles.Repository = (*Repository)(nil)

// Create stores a new article. The slug is assigned by the autoslug plugin
// unless the caller provides one.
func (r *Repository) Create(ctx context.Context, article *domainarticles.Article) error {
	if article == nil {
		return eris.New("article is nil")
	}

	base := ArticleRecord{
		Title: strings.TrimSpace(article.Title),
		Slug:  strings.TrimSpace(article.Slug),
	}

	var (
		record *ArticleRecord
		value  interface{}
	)
	if article.Featured {
		featured := &FeaturedArticleRecord{ArticleRecord: base}
		record, value = &featured.ArticleRecord, featured
	} else {
		record = &base
		value = record
	}

	if err := r.db.WithContext(ctx).Create(value).Error; err != nil {
		if isDuplicate(err) {
			r.logError(logrus.Fields{"title": base.Title}, err, "creating article with duplicate slug")
			return eris.Wrapf(domainarticles.ErrSlugTaken, "creating article: %s", base.Title)
		}
		r.logError(logrus.Fields{"title": base.Title}, err, "creating article")
		return eris.Wrapf(err, "creating article: %s", base.Title)
	}

	*article = *toDomainArticle(record, article.Featured)
	return nil
}

// GetBySlug returns the article for the provided slug or nil when not found.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*domainarticles.Article, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	record, featured, err := r.find(r.db.WithContext(ctx), trimmed)
	if err != nil {
		r.logError(logrus.Fields{"slug": trimmed}, err, "fetching article by slug")
		return nil, eris.Wrapf(err, "fetching article by slug: %s", trimmed)
	}
	if record == nil {
		return nil, nil
	}

	return toDomainArticle(record, featured), nil
}

// List returns every article from both tables ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]domainarticles.Article, error) {
	var (
		plain    []ArticleRecord
		featured []FeaturedArticleRecord
	)

	db := r.db.WithContext(ctx)
	if err := db.Order("created_at ASC, id ASC").Find(&plain).Error; err != nil {
		r.logError(nil, err, "listing articles")
		return nil, eris.Wrap(err, "listing articles")
	}
	if err := db.Order("created_at ASC, id ASC").Find(&featured).Error; err != nil {
		r.logError(nil, err, "listing featured articles")
		return nil, eris.Wrap(err, "listing featured articles")
	}

	list := make([]domainarticles.Article, 0, len(plain)+len(featured))
	for i := range plain {
		list = append(list, *toDomainArticle(&plain[i], false))
	}
	for i := range featured {
		list = append(list, *toDomainArticle(&featured[i].ArticleRecord, true))
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	return list, nil
}

// Count returns the total number of live articles across both tables.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var plain, featured int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&ArticleRecord{}).Count(&plain).Error; err != nil {
		r.logError(nil, err, "counting articles")
		return 0, eris.Wrap(err, "counting articles")
	}
	if err := db.Model(&FeaturedArticleRecord{}).Count(&featured).Error; err != nil {
		r.logError(nil, err, "counting featured articles")
		return 0, eris.Wrap(err, "counting featured articles")
	}

	return plain + featured, nil
}

// Rename changes the title through a regular save. The slug is kept.
func (r *Repository) Rename(ctx context.Context, slug, title string) (*domainarticles.Article, error) {
	trimmed := strings.TrimSpace(slug)

	var result *domainarticles.Article
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, featured, err := r.find(tx, trimmed)
		if err != nil || record == nil {
			return err
		}

		record.Title = strings.TrimSpace(title)
		if featured {
			value := &FeaturedArticleRecord{ArticleRecord: *record}
			err = tx.Save(value).Error
			record = &value.ArticleRecord
		} else {
			err = tx.Save(record).Error
		}
		if err != nil {
			return err
		}

		result = toDomainArticle(record, featured)
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"slug": trimmed}, err, "renaming article")
		return nil, eris.Wrapf(err, "renaming article: %s", trimmed)
	}

	return result, nil
}

// SetSlug writes newSlug directly, bypassing slug derivation. It fails with
// ErrSlugTaken when any article in the shared scope, soft-deleted ones
// included, already holds newSlug.
func (r *Repository) SetSlug(ctx context.Context, slug, newSlug string) (*domainarticles.Article, error) {
	trimmed := strings.TrimSpace(slug)
	next := strings.TrimSpace(newSlug)

	var result *domainarticles.Article
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, featured, err := r.find(tx, trimmed)
		if err != nil || record == nil {
			return err
		}

		if next != record.Slug {
			taken, err := r.slugTaken(tx, next)
			if err != nil {
				return err
			}
			if taken {
				return domainarticles.ErrSlugTaken
			}
		}

		var model interface{} = &ArticleRecord{}
		if featured {
			model = &FeaturedArticleRecord{}
		}
		if err := tx.Model(model).Where("id = ?", record.ID).Update("slug", next).Error; err != nil {
			if isDuplicate(err) {
				return domainarticles.ErrSlugTaken
			}
			return err
		}

		record.Slug = next
		result = toDomainArticle(record, featured)
		return nil
	})
	if err != nil {
		if eris.Is(err, domainarticles.ErrSlugTaken) {
			return nil, eris.Wrapf(err, "changing slug to %s", next)
		}
		r.logError(logrus.Fields{"slug": trimmed, "new_slug": next}, err, "changing article slug")
		return nil, eris.Wrapf(err, "changing slug of %s", trimmed)
	}

	return result, nil
}

// find looks the slug up in both tables. It returns a nil record when neither
// holds a live article with that slug.
func (r *Repository) find(db *gorm.DB, slug string) (*ArticleRecord, bool, error) {
	var record ArticleRecord
	err := db.First(&record, "slug = ?", slug).Error
	if err == nil {
		return &record, false, nil
	}
	if !eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var featured FeaturedArticleRecord
	err = db.First(&featured, "slug = ?", slug).Error
	if err == nil {
		return &featured.ArticleRecord, true, nil
	}
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

func (r *Repository) slugTaken(db *gorm.DB, slug string) (bool, error) {
	for _, model := range Models() {
		var count int64
		if err := db.Unscoped().Model(model).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func toDomainArticle(record *ArticleRecord, featured bool) *domainarticles.Article {
	if record == nil {
		return nil
	}

	return &domainarticles.Article{
		Title:     record.Title,
		Slug:      record.Slug,
		Featured:  featured,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
