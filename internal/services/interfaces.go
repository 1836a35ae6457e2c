package services

import (
	"context"
	"errors"
	"time"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/pagination"
)

var (
	// ErrNotFound is returned when a reference matches no entity.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when a collection has nothing cached and its last fetch failed.
	ErrUnavailable = errors.New("archive data unavailable")
)

// ArchiveCache is the subset of *cache.Store used by the archive service.
type ArchiveCache interface {
	Ensure(ctx context.Context, key cache.Collection) error
	ForceRefresh(key cache.Collection) <-chan struct{}
	Snapshot() cache.State
	Status(now time.Time) []cache.CollectionStatus
	RandomMartyrs(n int) []domain.Martyr
	TodayActivities(now time.Time) []domain.Activity
}

// ArchiveService serves the cached archive collections and resolves entity references.
type ArchiveService interface {
	SiteSettings(ctx context.Context) (*domain.SiteSettings, error)
	Locations(ctx context.Context) ([]domain.Location, error)
	Legends(ctx context.Context) ([]domain.Legend, error)
	Martyrs(ctx context.Context) ([]domain.Martyr, error)
	Activities(ctx context.Context) ([]domain.Activity, error)

	// Resolve* accept a derived slug or a document id.
	ResolveLocation(ctx context.Context, ref string) (domain.Location, error)
	ResolveMartyr(ctx context.Context, ref string) (domain.Martyr, error)
	ResolveActivity(ctx context.Context, ref string) (domain.Activity, error)

	Legend(ctx context.Context, id string) (*domain.Legend, error)
	MartyrWar(ctx context.Context, martyr domain.Martyr) (*domain.War, error)
	RandomMartyrs(ctx context.Context, n int) ([]domain.Martyr, error)
	TodayActivities(ctx context.Context, loc *time.Location) ([]domain.Activity, error)

	Refresh(ctx context.Context, key cache.Collection) (cache.CollectionStatus, error)
	CacheStatus() []cache.CollectionStatus
}

// NewsListRequest selects a page of news.
type NewsListRequest struct {
	PageSize int
	After    pagination.Cursor
}

// NewsArticle is a news article with its markdown bodies rendered.
type NewsArticle struct {
	domain.NewsArticle
	BodyHTMLEn string
	BodyHTMLAr string
}

// PageSection is a dynamic page section with rendered bodies.
type PageSection struct {
	domain.PageSection
	BodyHTMLEn string
	BodyHTMLAr string
}

// Page is a published dynamic page ready for display.
type Page struct {
	ID        string
	Slug      string
	TitleEn   string
	TitleAr   string
	Sections  []PageSection
	UpdatedAt time.Time
}

// ContentService serves news and dynamic pages.
type ContentService interface {
	ListNews(ctx context.Context, req NewsListRequest) (domain.CursorPage[domain.NewsArticle], error)
	GetNews(ctx context.Context, id string) (NewsArticle, error)
	GetPage(ctx context.Context, slug string) (Page, error)
}

// SystemService aggregates health reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// MarkdownRenderer converts markdown bodies to sanitised HTML.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}
