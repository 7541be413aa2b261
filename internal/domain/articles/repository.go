package articles

import "context"

// Repository defines persistence operations supported by the articles domain.
// Lookups return nil without an error when no article holds the slug.
type Repository interface {
	Create(ctx context.Context, article *Article) error
	GetBySlug(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context) ([]Article, error)
	Count(ctx context.Context) (int64, error)
	Rename(ctx context.Context, slug, title string) (*Article, error)
	SetSlug(ctx context.Context, slug, newSlug string) (*Article, error)
}
