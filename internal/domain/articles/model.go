package articles

import "time"

// Article is a titled entry addressed by its derived slug.
type Article struct {
	Title     string
	Slug      string
	Featured  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
