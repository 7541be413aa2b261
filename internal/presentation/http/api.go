package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"autoslug/app/internal/domain/articles"
)

type articleBody struct {
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type articleOutput struct {
	Body articleBody
}

type articleListOutput struct {
	Body struct {
		Articles []articleBody `json:"articles"`
		Count    int           `json:"count"`
	}
}

type createArticleInput struct {
	Body struct {
		Title    string `json:"title" maxLength:"255" doc:"Source of the derived slug"`
		Featured bool   `json:"featured,omitempty" doc:"Store the article in the featured table"`
	}
}

type articlePathInput struct {
	Slug string `path:"slug"`
}

type renameArticleInput struct {
	Slug string `path:"slug"`
	Body struct {
		Title string `json:"title" maxLength:"255"`
	}
}

type changeSlugInput struct {
	Slug string `path:"slug"`
	Body struct {
		Slug string `json:"slug" minLength:"1" maxLength:"255" doc:"Lowercase letters, digits and '-'"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerCreateArticleRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-article",
		Method:        stdhttp.MethodPost,
		Path:          "/api/articles",
		Summary:       "Create an article",
		Tags:          []string{"articles"},
		DefaultStatus: stdhttp.StatusCreated,
	}, s.createArticleHandler)
}

func (s *Server) registerListArticlesRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-articles",
		Method:      stdhttp.MethodGet,
		Path:        "/api/articles",
		Summary:     "List articles",
		Tags:        []string{"articles"},
	}, s.listArticlesHandler)
}

func (s *Server) registerGetArticleRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-article",
		Method:      stdhttp.MethodGet,
		Path:        "/api/articles/{slug}",
		Summary:     "Fetch an article by slug",
		Tags:        []string{"articles"},
	}, s.getArticleHandler)
}

func (s *Server) registerRenameArticleRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "rename-article",
		Method:      stdhttp.MethodPut,
		Path:        "/api/articles/{slug}",
		Summary:     "Change the title of an article; the slug is kept",
		Tags:        []string{"articles"},
	}, s.renameArticleHandler)
}

func (s *Server) registerChangeSlugRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "change-article-slug",
		Method:      stdhttp.MethodPut,
		Path:        "/api/articles/{slug}/slug",
		Summary:     "Set the slug of an article directly",
		Tags:        []string{"articles"},
	}, s.changeSlugHandler)
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) createArticleHandler(ctx context.Context, input *createArticleInput) (*articleOutput, error) {
	article, err := s.articles.Create(ctx, input.Body.Title, input.Body.Featured)
	if err != nil {
		return nil, s.apiError(ctx, err, "creating article", logrus.Fields{"title": input.Body.Title})
	}
	return &articleOutput{Body: toArticleBody(*article)}, nil
}

func (s *Server) listArticlesHandler(ctx context.Context, _ *struct{}) (*articleListOutput, error) {
	list, err := s.articles.List(ctx)
	if err != nil {
		return nil, s.apiError(ctx, err, "listing articles", nil)
	}

	out := &articleListOutput{}
	out.Body.Articles = make([]articleBody, 0, len(list))
	for _, article := range list {
		out.Body.Articles = append(out.Body.Articles, toArticleBody(article))
	}
	out.Body.Count = len(list)
	return out, nil
}

func (s *Server) getArticleHandler(ctx context.Context, input *articlePathInput) (*articleOutput, error) {
	article, err := s.articles.Get(ctx, input.Slug)
	if err != nil {
		return nil, s.apiError(ctx, err, "fetching article", logrus.Fields{"slug": input.Slug})
	}
	return &articleOutput{Body: toArticleBody(*article)}, nil
}

func (s *Server) renameArticleHandler(ctx context.Context, input *renameArticleInput) (*articleOutput, error) {
	article, err := s.articles.Rename(ctx, input.Slug, input.Body.Title)
	if err != nil {
		return nil, s.apiError(ctx, err, "renaming article", logrus.Fields{"slug": input.Slug})
	}
	return &articleOutput{Body: toArticleBody(*article)}, nil
}

func (s *Server) changeSlugHandler(ctx context.Context, input *changeSlugInput) (*articleOutput, error) {
	article, err := s.articles.ChangeSlug(ctx, input.Slug, input.Body.Slug)
	if err != nil {
		fields := logrus.Fields{"slug": input.Slug, "new_slug": input.Body.Slug}
		return nil, s.apiError(ctx, err, "changing article slug", fields)
	}
	return &articleOutput{Body: toArticleBody(*article)}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	if s.healthCheck == nil {
		resp.Body.Database = "unconfigured"
		return resp, nil
	}

	if err := s.healthCheck(ctx); err != nil {
		s.recordError(ctx, err, "database health check failed", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
	}

	return resp, nil
}

// apiError maps domain errors onto problem responses. Unexpected failures
// are recorded and reported without detail.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	switch {
	case eris.Is(err, articles.ErrNotFound):
		return huma.Error404NotFound("article not found")
	case eris.Is(err, articles.ErrSlugTaken):
		return huma.Error409Conflict("slug already in use")
	case eris.Is(err, articles.ErrInvalidSlug):
		return huma.Error400BadRequest("slug may only contain lowercase letters, digits and '-'")
	case eris.Is(err, articles.ErrSlugRequired):
		return huma.Error400BadRequest("slug is required")
	case eris.Is(err, articles.ErrTitleTooLong):
		return huma.Error400BadRequest("title is too long")
	}

	s.recordError(ctx, err, message, fields)
	return huma.Error500InternalServerError(errorFallbackMessage)
}

func toArticleBody(article articles.Article) articleBody {
	return articleBody{
		Title:     article.Title,
		Slug:      article.Slug,
		Featured:  article.Featured,
		CreatedAt: article.CreatedAt,
		UpdatedAt: article.UpdatedAt,
	}
}
