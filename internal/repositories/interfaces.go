package repositories

import (
	"context"
	"time"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ArchiveRepository reads the memorial archive. The List methods satisfy cache.Source; the Get
// methods serve direct lookups for ids the cache does not hold.
type ArchiveRepository interface {
	cache.Source

	GetLocation(ctx context.Context, id string) (domain.Location, error)
	GetMartyr(ctx context.Context, id string) (domain.Martyr, error)
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
	GetWar(ctx context.Context, id string) (domain.War, error)
}

// NewsQuery selects one page of published news, newest first.
type NewsQuery struct {
	PageSize int
	// AfterPublishedAt and AfterID identify the last article of the previous page.
	AfterPublishedAt time.Time
	AfterID          string
}

// ContentRepository reads editorial content that is never cached.
type ContentRepository interface {
	ListNews(ctx context.Context, query NewsQuery) (domain.CursorPage[domain.NewsArticle], error)
	GetNews(ctx context.Context, id string) (domain.NewsArticle, error)
	FindPageBySlug(ctx context.Context, slug string) (domain.DynamicPage, error)
}

// HealthRepository exposes dependency health for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
