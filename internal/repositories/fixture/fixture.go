// Package fixture serves the archive from a YAML file. It backs local development without
// Firestore and the archivectl tooling.
package fixture

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/repositories/records"
	"github.com/memorial-heritage/api/internal/slug"
)

type document struct {
	SiteSettings *records.SiteSettings `yaml:"siteSettings"`
	Legends      []records.Legend      `yaml:"legends"`
	Locations    []records.Location    `yaml:"locations"`
	Martyrs      []records.Martyr      `yaml:"martyrs"`
	Activities   []records.Activity    `yaml:"activities"`
	Wars         []records.War         `yaml:"wars"`
	News         []records.NewsArticle `yaml:"news"`
	Pages        []records.DynamicPage `yaml:"pages"`
}

// Repository holds a decoded fixture in memory. It is immutable after construction.
type Repository struct {
	settings   *domain.SiteSettings
	legends    []domain.Legend
	locations  []domain.Location
	martyrs    []domain.Martyr
	activities []domain.Activity
	wars       []domain.War
	news       []domain.NewsArticle
	pages      []domain.DynamicPage
}

var (
	_ repositories.ArchiveRepository = (*Repository)(nil)
	_ repositories.ContentRepository = (*Repository)(nil)
)

// Load reads and decodes the fixture file at path.
func Load(path string, logger *zap.Logger) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	return Parse(data, logger)
}

// Parse decodes fixture YAML. Records failing validation are logged and skipped.
func Parse(data []byte, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: decode yaml: %w", err)
	}

	repo := &Repository{
		legends:    convert[records.Legend, domain.Legend](logger, "legends", doc.Legends),
		locations:  convert[records.Location, domain.Location](logger, "locations", doc.Locations),
		martyrs:    convert[records.Martyr, domain.Martyr](logger, "martyrs", doc.Martyrs),
		activities: convert[records.Activity, domain.Activity](logger, "activities", doc.Activities),
		wars:       convert[records.War, domain.War](logger, "wars", doc.Wars),
		news:       convert[records.NewsArticle, domain.NewsArticle](logger, "news", doc.News),
		pages:      convert[records.DynamicPage, domain.DynamicPage](logger, "pages", doc.Pages),
	}
	if doc.SiteSettings != nil {
		settings, err := doc.SiteSettings.ToDomain("")
		if err != nil {
			logger.Warn("skipping invalid fixture record", zap.String("collection", "siteSettings"), zap.Error(err))
		} else {
			repo.settings = settings
		}
	}

	domain.SortActivitiesNewestFirst(repo.activities)
	sort.SliceStable(repo.news, func(i, j int) bool {
		a, b := repo.news[i], repo.news[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID > b.ID
	})
	return repo, nil
}

// convert validates records in file order. The record's own id field is used because fixture
// entries have no document id.
func convert[R interface{ ToDomain(string) (T, error) }, T any](logger *zap.Logger, collection string, in []R) []T {
	out := make([]T, 0, len(in))
	for i, rec := range in {
		value, err := rec.ToDomain("")
		if err != nil {
			logger.Warn("skipping invalid fixture record",
				zap.String("collection", collection),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, value)
	}
	return out
}

func (r *Repository) ListLocations(context.Context) ([]domain.Location, error) {
	return clone(r.locations), nil
}

func (r *Repository) ListLegends(context.Context) ([]domain.Legend, error) {
	return clone(r.legends), nil
}

func (r *Repository) ListMartyrs(context.Context) ([]domain.Martyr, error) {
	return clone(r.martyrs), nil
}

func (r *Repository) ListActivities(context.Context) ([]domain.Activity, error) {
	return clone(r.activities), nil
}

func (r *Repository) GetSiteSettings(context.Context) (*domain.SiteSettings, error) {
	if r.settings == nil {
		return nil, nil
	}
	settings := *r.settings
	return &settings, nil
}

func (r *Repository) GetLocation(_ context.Context, id string) (domain.Location, error) {
	return find(r.locations, id, domain.KindLocation, func(l domain.Location) string { return l.ID })
}

func (r *Repository) GetMartyr(_ context.Context, id string) (domain.Martyr, error) {
	return find(r.martyrs, id, domain.KindMartyr, func(m domain.Martyr) string { return m.ID })
}

func (r *Repository) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	return find(r.activities, id, domain.KindActivity, func(a domain.Activity) string { return a.ID })
}

func (r *Repository) GetWar(_ context.Context, id string) (domain.War, error) {
	return find(r.wars, id, "war", func(w domain.War) string { return w.ID })
}

// ListNews pages through published articles with the same ordering as the Firestore repository.
func (r *Repository) ListNews(_ context.Context, query repositories.NewsQuery) (domain.CursorPage[domain.NewsArticle], error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	var page domain.CursorPage[domain.NewsArticle]
	page.Items = make([]domain.NewsArticle, 0, pageSize)
	for _, article := range r.news {
		if !article.Published || !after(article, query) {
			continue
		}
		if len(page.Items) == pageSize {
			last := page.Items[pageSize-1]
			token, err := pagination.EncodeToken(pagination.Cursor{PublishedAt: last.PublishedAt, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.NewsArticle]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, article)
	}
	return page, nil
}

// after reports whether article sorts strictly after the query cursor.
func after(article domain.NewsArticle, query repositories.NewsQuery) bool {
	if query.AfterID == "" {
		return true
	}
	if !article.PublishedAt.Equal(query.AfterPublishedAt) {
		return article.PublishedAt.Before(query.AfterPublishedAt)
	}
	return article.ID < query.AfterID
}

func (r *Repository) GetNews(_ context.Context, id string) (domain.NewsArticle, error) {
	article, err := find(r.news, id, "news", func(n domain.NewsArticle) string { return n.ID })
	if err != nil {
		return domain.NewsArticle{}, err
	}
	if !article.Published {
		return domain.NewsArticle{}, repositories.NewNotFound("news", id)
	}
	return article, nil
}

func (r *Repository) FindPageBySlug(_ context.Context, pageSlug string) (domain.DynamicPage, error) {
	normalized := slug.Normalize(pageSlug)
	for _, page := range r.pages {
		if page.Published && normalized != "" && page.Slug == normalized {
			return page, nil
		}
	}
	return domain.DynamicPage{}, repositories.NewNotFound("page", pageSlug)
}

func find[T any](items []T, id, resource string, idOf func(T) string) (T, error) {
	for _, item := range items {
		if idOf(item) == id {
			return item, nil
		}
	}
	var zero T
	return zero, repositories.NewNotFound(resource, id)
}

func clone[T any](items []T) []T {
	return append(make([]T, 0, len(items)), items...)
}
