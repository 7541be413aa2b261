package articles

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autoslug/app/internal/autoslug"
)

// ArticleRecord represents an article persisted in the database. The slug is
// derived from the title on first save.
type ArticleRecord struct {
	gorm.Model
	Title string `gorm:"size:255;not null"`
	Slug  string `gorm:"size:255;not null;uniqueIndex" autoslug:"populate_from:Title"`
}

// TableName defines the table name for the ArticleRecord model.
func (ArticleRecord) TableName() string {
	return "articles"
}

// FeaturedArticleRecord is an article kept in its own table. It shares the
// slug namespace with ArticleRecord.
type FeaturedArticleRecord struct {
	ArticleRecord
}

// TableName defines the table name for the FeaturedArticleRecord model.
func (FeaturedArticleRecord) TableName() string {
	return "featured_articles"
}

// Models lists the records managed by this package in migration order.
func Models() []interface{} {
	return []interface{}{&ArticleRecord{}, &FeaturedArticleRecord{}}
}

// Plugin returns the autoslug plugin configured for the article records.
func Plugin(logger *logrus.Logger) *autoslug.Plugin {
	return autoslug.New(
		autoslug.WithLogger(logger),
		autoslug.ShareScope(Models()...),
	)
}
