package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/memorial-heritage/api/internal/domain"
	pfirestore "github.com/memorial-heritage/api/internal/platform/firestore"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/repositories/records"
	"github.com/memorial-heritage/api/internal/slug"
)

const (
	newsCollection  = "news"
	pagesCollection = "pages"
)

// ContentRepository reads news and dynamic pages from Firestore.
type ContentRepository struct {
	news  *pfirestore.Collection[domain.NewsArticle]
	pages *pfirestore.Collection[domain.DynamicPage]
}

var _ repositories.ContentRepository = (*ContentRepository)(nil)

// NewContentRepository constructs a Firestore-backed content repository.
func NewContentRepository(provider *pfirestore.Provider, logger *zap.Logger) (*ContentRepository, error) {
	if provider == nil {
		return nil, errors.New("content repository: firestore provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	withLogger := pfirestore.WithCollectionLogger(logger)
	return &ContentRepository{
		news:  pfirestore.NewCollection(provider, newsCollection, pfirestore.RecordDecoder[records.NewsArticle, domain.NewsArticle](), withLogger),
		pages: pfirestore.NewCollection(provider, pagesCollection, pfirestore.RecordDecoder[records.DynamicPage, domain.DynamicPage](), withLogger),
	}, nil
}

// ListNews returns one page of published articles ordered by publishedAt desc, document id desc.
// One extra document is read to decide whether a next page exists.
func (r *ContentRepository) ListNews(ctx context.Context, query repositories.NewsQuery) (domain.CursorPage[domain.NewsArticle], error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	items, err := r.news.List(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("published", "==", true).
			OrderBy("publishedAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if query.AfterID != "" {
			q = q.StartAfter(query.AfterPublishedAt, query.AfterID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.NewsArticle]{}, err
	}

	page := domain.CursorPage[domain.NewsArticle]{Items: items}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		last := page.Items[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Cursor{PublishedAt: last.PublishedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.NewsArticle]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// GetNews loads one article. Unpublished articles are reported as not found.
func (r *ContentRepository) GetNews(ctx context.Context, id string) (domain.NewsArticle, error) {
	article, err := r.news.Get(ctx, id)
	if err != nil {
		return domain.NewsArticle{}, err
	}
	if !article.Published {
		return domain.NewsArticle{}, pfirestore.WrapError("news.get", status.Error(codes.NotFound, "news article not published"))
	}
	return article, nil
}

// FindPageBySlug returns the published page stored under slug.
func (r *ContentRepository) FindPageBySlug(ctx context.Context, pageSlug string) (domain.DynamicPage, error) {
	pageSlug = slug.Normalize(pageSlug)
	if strings.TrimSpace(pageSlug) == "" {
		return domain.DynamicPage{}, pfirestore.WrapError("pages.find", status.Error(codes.NotFound, "page slug is empty"))
	}
	pages, err := r.pages.List(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", pageSlug).Where("published", "==", true).Limit(1)
	})
	if err != nil {
		return domain.DynamicPage{}, err
	}
	if len(pages) == 0 {
		return domain.DynamicPage{}, pfirestore.WrapError("pages.find", status.Error(codes.NotFound, "page not found"))
	}
	return pages[0], nil
}
