// Package views holds the HTML components served by the transport layer.
package views

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

const dateLayout = "2006-01-02"

// ArticleURL returns the HTML path of the article with the given slug.
func ArticleURL(slug string) string {
	return "/articles/" + url.PathEscape(slug)
}

// IndexPage lists every article with a link to its page.
func IndexPage(data IndexPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		p.raw(`<section class="articles"><p class="count">`)
		p.text(data.CountLabel)
		p.raw(`</p>`)

		if len(data.Articles) == 0 {
			p.raw(`<p class="empty">No articles yet.</p></section>`)
			return p.err
		}

		p.raw(`<ul>`)
		for _, article := range data.Articles {
			p.raw(`<li><a href="`)
			p.text(ArticleURL(article.Slug))
			p.raw(`">`)
			p.text(article.Title)
			p.raw(`</a> <code class="slug">`)
			p.text(article.Slug)
			p.raw(`</code>`)
			if article.Featured {
				p.raw(` <span class="featured">featured</span>`)
			}
			p.raw(`</li>`)
		}
		p.raw(`</ul></section>`)
		return p.err
	})

	return layout(data.Title, data.FooterNote, body)
}

// ArticlePage renders one article.
func ArticlePage(data ArticlePageData) templ.Component {
	article := data.Article
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		p.raw(`<article><h2>`)
		p.text(article.Title)
		p.raw(`</h2><dl><dt>Slug</dt><dd><code class="slug">`)
		p.text(article.Slug)
		p.raw(`</code></dd>`)
		if !article.CreatedAt.IsZero() {
			p.raw(`<dt>Created</dt><dd>`)
			p.text(article.CreatedAt.Format(dateLayout))
			p.raw(`</dd>`)
		}
		p.raw(`</dl><p><a href="/">All articles</a></p></article>`)
		return p.err
	})

	title := article.Title
	if title == "" {
		title = article.Slug
	}
	return layout(title, data.FooterNote, body)
}

// ErrorPage renders an error status with a short message.
func ErrorPage(data ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		p.raw(`<section class="error"><h2>`)
		p.text(data.StatusLabel)
		p.raw(`</h2><p>`)
		p.text(data.Message)
		p.raw(`</p><p><a href="/">Back to all articles</a></p></section>`)
		return p.err
	})

	return layout(data.Title, "", body)
}

func layout(title, footer string, body templ.Component) templ.Component {
	if footer == "" {
		footer = DefaultFooterNote
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p := printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		p.text(title)
		p.raw(`</title></head><body><header><h1><a href="/">Articles</a></h1></header><main>`)
		if p.err != nil {
			return p.err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		p.raw(`</main><footer><p>`)
		p.text(footer)
		p.raw(`</p></footer></body></html>`)
		return p.err
	})
}

// printer stops writing after the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}
