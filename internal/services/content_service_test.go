package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/repositories"
)

type stubContentRepository struct {
	queries []repositories.NewsQuery
	page    domain.CursorPage[domain.NewsArticle]
	news    map[string]domain.NewsArticle
	pages   map[string]domain.DynamicPage
	err     error
}

func (s *stubContentRepository) ListNews(_ context.Context, query repositories.NewsQuery) (domain.CursorPage[domain.NewsArticle], error) {
	s.queries = append(s.queries, query)
	return s.page, s.err
}

func (s *stubContentRepository) GetNews(_ context.Context, id string) (domain.NewsArticle, error) {
	if s.err != nil {
		return domain.NewsArticle{}, s.err
	}
	if article, ok := s.news[id]; ok {
		return article, nil
	}
	return domain.NewsArticle{}, repositories.NewNotFound("news", id)
}

func (s *stubContentRepository) FindPageBySlug(_ context.Context, slug string) (domain.DynamicPage, error) {
	if page, ok := s.pages[slug]; ok {
		return page, nil
	}
	return domain.DynamicPage{}, repositories.NewNotFound("page", slug)
}

type upperRenderer struct{}

func (upperRenderer) Render(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	return "<p>" + strings.ToUpper(markdown) + "</p>", nil
}

func TestContentServiceListNewsPassesCursor(t *testing.T) {
	repo := &stubContentRepository{
		page: domain.CursorPage[domain.NewsArticle]{Items: []domain.NewsArticle{{ID: "n1"}}, NextPageToken: "next"},
	}
	svc, err := NewContentService(ContentServiceDeps{Repository: repo, Renderer: upperRenderer{}, DefaultPageSize: 7})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}

	after := pagination.Cursor{PublishedAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), ID: "n0"}
	page, err := svc.ListNews(context.Background(), NewsListRequest{After: after})
	if err != nil {
		t.Fatalf("ListNews: %v", err)
	}
	if page.NextPageToken != "next" || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	got := repo.queries[0]
	if got.PageSize != 7 || got.AfterID != "n0" || !got.AfterPublishedAt.Equal(after.PublishedAt) {
		t.Fatalf("unexpected query %+v", got)
	}
}

func TestContentServiceGetNewsRendersBodies(t *testing.T) {
	repo := &stubContentRepository{
		news: map[string]domain.NewsArticle{"n1": {ID: "n1", BodyEn: "hello", BodyAr: "مرحبا"}},
	}
	svc, err := NewContentService(ContentServiceDeps{Repository: repo, Renderer: upperRenderer{}})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}

	article, err := svc.GetNews(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if article.BodyHTMLEn != "<p>HELLO</p>" || article.BodyHTMLAr == "" {
		t.Fatalf("unexpected rendered bodies %+v", article)
	}

	if _, err := svc.GetNews(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetNews(context.Background(), "a/b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for path-like id, got %v", err)
	}
}

func TestContentServiceGetNewsPropagatesBackendErrors(t *testing.T) {
	backend := errors.New("unavailable")
	svc, err := NewContentService(ContentServiceDeps{Repository: &stubContentRepository{err: backend}, Renderer: upperRenderer{}})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}
	if _, err := svc.GetNews(context.Background(), "n1"); !errors.Is(err, backend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestContentServiceGetPageRendersTextSections(t *testing.T) {
	repo := &stubContentRepository{
		pages: map[string]domain.DynamicPage{
			"about": {
				ID:   "p1",
				Slug: "about",
				Sections: []domain.PageSection{
					{Kind: domain.PageSectionText, BodyEn: "intro"},
					{Kind: domain.PageSectionGallery, BodyEn: "ignored", Images: []domain.Photo{{URL: "a.jpg"}}},
				},
			},
		},
	}
	svc, err := NewContentService(ContentServiceDeps{Repository: repo, Renderer: upperRenderer{}})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}

	page, err := svc.GetPage(context.Background(), "about")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Sections[0].BodyHTMLEn != "<p>INTRO</p>" || page.Sections[1].BodyHTMLEn != "" {
		t.Fatalf("unexpected sections %+v", page.Sections)
	}
	if _, err := svc.GetPage(context.Background(), "contact"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewContentServiceValidates(t *testing.T) {
	if _, err := NewContentService(ContentServiceDeps{}); !errors.Is(err, ErrContentRepositoryMissing) {
		t.Fatalf("expected missing repository error, got %v", err)
	}
	if _, err := NewContentService(ContentServiceDeps{Repository: &stubContentRepository{}}); err == nil {
		t.Fatalf("expected missing renderer error")
	}
}
