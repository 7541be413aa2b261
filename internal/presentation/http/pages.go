package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"autoslug/app/internal/domain/articles"
	"autoslug/app/internal/presentation/http/views"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	errorFallbackMessage = "We couldn't process your request right now."
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// indexInput captures the request path; the root pattern also matches every
// path no other route claims.
type indexInput struct {
	path string
}

func (i *indexInput) Resolve(ctx huma.Context) []error {
	i.path = ctx.URL().Path
	return nil
}

type articlePageInput struct {
	Slug string `path:"slug"`
}

func (s *Server) registerIndexRoute() {
	huma.Get(s.api, "/", s.indexHandler, htmlOperation(
		"Article index",
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerArticlePageRoute() {
	huma.Get(s.api, "/articles/{slug}", s.articlePageHandler, htmlOperation(
		"Article page",
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) indexHandler(ctx context.Context, input *indexInput) (*htmlResponse, error) {
	if input.path != "" && input.path != "/" {
		return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, "There is nothing at this address.")
	}

	list, err := s.articles.List(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing articles", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the articles right now.")
	}

	data := views.IndexPageData{
		Title:      "Articles",
		CountLabel: countLabel(len(list)),
		Articles:   make([]views.ArticleView, 0, len(list)),
	}
	for _, article := range list {
		data.Articles = append(data.Articles, toArticleView(article))
	}

	body, err := renderComponent(ctx, views.IndexPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering index page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the article index.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) articlePageHandler(ctx context.Context, input *articlePageInput) (*htmlResponse, error) {
	slug := strings.TrimSpace(input.Slug)

	article, err := s.articles.Get(ctx, slug)
	if err != nil {
		if eris.Is(err, articles.ErrNotFound) || eris.Is(err, articles.ErrSlugRequired) {
			return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, "We couldn't find that article.")
		}
		s.recordError(ctx, err, "loading article page", logrus.Fields{"slug": slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	body, err := renderComponent(ctx, views.ArticlePage(views.ArticlePageData{Article: toArticleView(*article)}))
	if err != nil {
		s.recordError(ctx, err, "rendering article page", logrus.Fields{"slug": slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	component := views.ErrorPage(views.ErrorPageData{
		Title:       label,
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		op.Tags = []string{"pages"}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func toArticleView(article articles.Article) views.ArticleView {
	return views.ArticleView{
		Title:     article.Title,
		Slug:      article.Slug,
		Featured:  article.Featured,
		CreatedAt: article.CreatedAt,
	}
}

func countLabel(count int) string {
	if count == 1 {
		return "1 article"
	}
	return fmt.Sprintf("%d articles", count)
}
