package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/repositories"
)

// ContentServiceDeps groups constructor parameters for the content service.
type ContentServiceDeps struct {
	Repository      repositories.ContentRepository
	Renderer        MarkdownRenderer
	DefaultPageSize int
}

type contentService struct {
	repo     repositories.ContentRepository
	renderer MarkdownRenderer
	pageSize int
}

// ErrContentRepositoryMissing signals that the content repository dependency is absent.
var ErrContentRepositoryMissing = errors.New("content service: content repository is not configured")

var _ ContentService = (*contentService)(nil)

// NewContentService constructs the content service with the supplied dependencies.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Repository == nil {
		return nil, ErrContentRepositoryMissing
	}
	if deps.Renderer == nil {
		return nil, errors.New("content service: markdown renderer is required")
	}
	pageSize := deps.DefaultPageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	return &contentService{
		repo:     deps.Repository,
		renderer: deps.Renderer,
		pageSize: pageSize,
	}, nil
}

func (s *contentService) ListNews(ctx context.Context, req NewsListRequest) (domain.CursorPage[domain.NewsArticle], error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	return s.repo.ListNews(ctx, repositories.NewsQuery{
		PageSize:         pageSize,
		AfterPublishedAt: req.After.PublishedAt,
		AfterID:          req.After.ID,
	})
}

func (s *contentService) GetNews(ctx context.Context, id string) (NewsArticle, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return NewsArticle{}, fmt.Errorf("%w: news %q", ErrNotFound, id)
	}
	article, err := s.repo.GetNews(ctx, id)
	if err != nil {
		return NewsArticle{}, notFoundOr(err, "news", id)
	}
	bodyEn, err := s.renderer.Render(article.BodyEn)
	if err != nil {
		return NewsArticle{}, err
	}
	bodyAr, err := s.renderer.Render(article.BodyAr)
	if err != nil {
		return NewsArticle{}, err
	}
	return NewsArticle{NewsArticle: article, BodyHTMLEn: bodyEn, BodyHTMLAr: bodyAr}, nil
}

func (s *contentService) GetPage(ctx context.Context, slug string) (Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Page{}, fmt.Errorf("%w: page %q", ErrNotFound, slug)
	}
	page, err := s.repo.FindPageBySlug(ctx, slug)
	if err != nil {
		return Page{}, notFoundOr(err, "page", slug)
	}

	sections := make([]PageSection, 0, len(page.Sections))
	for _, section := range page.Sections {
		rendered := PageSection{PageSection: section}
		if section.Kind == domain.PageSectionText {
			if rendered.BodyHTMLEn, err = s.renderer.Render(section.BodyEn); err != nil {
				return Page{}, err
			}
			if rendered.BodyHTMLAr, err = s.renderer.Render(section.BodyAr); err != nil {
				return Page{}, err
			}
		}
		sections = append(sections, rendered)
	}

	return Page{
		ID:        page.ID,
		Slug:      page.Slug,
		TitleEn:   page.TitleEn,
		TitleAr:   page.TitleAr,
		Sections:  sections,
		UpdatedAt: page.UpdatedAt,
	}, nil
}

func notFoundOr(err error, resource, ref string) error {
	if repositories.IsNotFound(err) {
		return fmt.Errorf("%w: %s %q", ErrNotFound, resource, ref)
	}
	return err
}
