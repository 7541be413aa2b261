package views

import "time"

// DefaultFooterNote is shown in the shared layout when a page does not supply custom text.
const DefaultFooterNote = "Slugs are derived from titles once and never change on their own."

// ArticleView is a single article row or page.
type ArticleView struct {
	Title     string
	Slug      string
	Featured  bool
	CreatedAt time.Time
}

// IndexPageData contains the values rendered on the landing page.
type IndexPageData struct {
	Title      string
	CountLabel string
	Articles   []ArticleView
	FooterNote string
}

// ArticlePageData contains the values rendered for a single article.
type ArticlePageData struct {
	Article    ArticleView
	FooterNote string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
}
