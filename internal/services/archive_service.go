package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/slug"
)

const (
	maxRandomMartyrs = 50
	// idLookupTimeout bounds a shared id lookup, which outlives the caller that started it.
	idLookupTimeout = 10 * time.Second
)

// ArchiveServiceDeps bundles collaborators required to construct the archive service.
type ArchiveServiceDeps struct {
	Cache      ArchiveCache
	Repository repositories.ArchiveRepository
	Clock      func() time.Time
	Logger     *zap.Logger
}

type archiveService struct {
	cache  ArchiveCache
	repo   repositories.ArchiveRepository
	clock  func() time.Time
	logger *zap.Logger
	lookup singleflight.Group
}

var _ ArchiveService = (*archiveService)(nil)

// NewArchiveService wires the cache and repository.
func NewArchiveService(deps ArchiveServiceDeps) (ArchiveService, error) {
	if deps.Cache == nil {
		return nil, errors.New("archive service: cache is required")
	}
	if deps.Repository == nil {
		return nil, errors.New("archive service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &archiveService{
		cache:  deps.Cache,
		repo:   deps.Repository,
		clock:  clock,
		logger: logger,
	}, nil
}

func (s *archiveService) SiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	if err := s.cache.Ensure(ctx, cache.SiteSettings); err != nil {
		return nil, err
	}
	entry := s.cache.Snapshot().Settings
	if entry.Value == nil && entry.Err != nil {
		return nil, unavailable(cache.SiteSettings, entry.Err)
	}
	return entry.Value, nil
}

func (s *archiveService) Locations(ctx context.Context) ([]domain.Location, error) {
	return ensureItems(ctx, s.cache, cache.Locations, func(st cache.State) cache.Entry[domain.Location] { return st.Locations })
}

func (s *archiveService) Legends(ctx context.Context) ([]domain.Legend, error) {
	return ensureItems(ctx, s.cache, cache.Legends, func(st cache.State) cache.Entry[domain.Legend] { return st.Legends })
}

func (s *archiveService) Martyrs(ctx context.Context) ([]domain.Martyr, error) {
	return ensureItems(ctx, s.cache, cache.Martyrs, func(st cache.State) cache.Entry[domain.Martyr] { return st.Martyrs })
}

func (s *archiveService) Activities(ctx context.Context) ([]domain.Activity, error) {
	return ensureItems(ctx, s.cache, cache.Activities, func(st cache.State) cache.Entry[domain.Activity] { return st.Activities })
}

// ensureItems waits for key to settle and returns whatever is cached. The collection's fetch
// error is surfaced only when nothing is cached.
func ensureItems[T any](ctx context.Context, c ArchiveCache, key cache.Collection, pick func(cache.State) cache.Entry[T]) ([]T, error) {
	if err := c.Ensure(ctx, key); err != nil {
		return nil, err
	}
	entry := pick(c.Snapshot())
	if len(entry.Items) == 0 && entry.Err != nil {
		return nil, unavailable(key, entry.Err)
	}
	if entry.Items == nil {
		return []T{}, nil
	}
	return entry.Items, nil
}

func unavailable(key cache.Collection, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, key, err)
}

func (s *archiveService) ResolveLocation(ctx context.Context, ref string) (domain.Location, error) {
	items, err := s.Locations(ctx)
	return resolve(ctx, s, domain.KindLocation, ref, items, err, s.repo.GetLocation)
}

func (s *archiveService) ResolveMartyr(ctx context.Context, ref string) (domain.Martyr, error) {
	items, err := s.Martyrs(ctx)
	return resolve(ctx, s, domain.KindMartyr, ref, items, err, s.repo.GetMartyr)
}

// ResolveActivity only addresses public activities, so a private activity sharing a slug never
// shadows a public one.
func (s *archiveService) ResolveActivity(ctx context.Context, ref string) (domain.Activity, error) {
	items, err := s.Activities(ctx)
	public := make([]domain.Activity, 0, len(items))
	for _, item := range items {
		if !item.IsPrivate {
			public = append(public, item)
		}
	}
	activity, err := resolve(ctx, s, domain.KindActivity, ref, public, err, s.repo.GetActivity)
	if err == nil && activity.IsPrivate {
		return domain.Activity{}, fmt.Errorf("%w: %s %q", ErrNotFound, domain.KindActivity, ref)
	}
	return activity, err
}

// resolve matches ref against the cached items first, then loads it as a document id. Concurrent
// id lookups for the same reference share one repository call.
func resolve[T slug.Sluggable](
	ctx context.Context,
	s *archiveService,
	kind, ref string,
	items []T,
	listErr error,
	fetchByID func(context.Context, string) (T, error),
) (T, error) {
	var zero T
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, fmt.Errorf("%w: empty %s reference", ErrNotFound, kind)
	}
	if errors.Is(listErr, context.Canceled) || errors.Is(listErr, context.DeadlineExceeded) {
		return zero, listErr
	}
	if entity, ok := slug.Resolve(ref, items); ok {
		return entity, nil
	}
	if !looksLikeDocumentID(ref) {
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, kind, ref)
	}

	value, err, shared := s.lookup.Do(kind+"/"+ref, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idLookupTimeout)
		defer cancel()
		return fetchByID(lookupCtx, ref)
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return zero, fmt.Errorf("%w: %s %q", ErrNotFound, kind, ref)
		}
		s.logger.Warn("id fallback lookup failed",
			zap.String("kind", kind),
			zap.String("ref", ref),
			zap.Bool("shared", shared),
			zap.Error(err),
		)
		return zero, err
	}
	return value.(T), nil
}

// looksLikeDocumentID filters references Firestore would reject as document ids.
func looksLikeDocumentID(ref string) bool {
	if ref == "." || ref == ".." || strings.Contains(ref, "/") {
		return false
	}
	return !(strings.HasPrefix(ref, "__") && strings.HasSuffix(ref, "__"))
}

func (s *archiveService) Legend(ctx context.Context, id string) (*domain.Legend, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	legends, err := s.Legends(ctx)
	if err != nil {
		return nil, err
	}
	for _, legend := range legends {
		if legend.ID == id {
			found := legend
			return &found, nil
		}
	}
	return nil, nil
}

// MartyrWar loads the war a martyr is associated with. A missing association or a dangling war
// id yields nil without error.
func (s *archiveService) MartyrWar(ctx context.Context, martyr domain.Martyr) (*domain.War, error) {
	warID := strings.TrimSpace(martyr.WarID)
	if warID == "" {
		return nil, nil
	}
	war, err := s.repo.GetWar(ctx, warID)
	if repositories.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &war, nil
}

func (s *archiveService) RandomMartyrs(ctx context.Context, n int) ([]domain.Martyr, error) {
	if _, err := s.Martyrs(ctx); err != nil {
		return nil, err
	}
	if n > maxRandomMartyrs {
		n = maxRandomMartyrs
	}
	return s.cache.RandomMartyrs(n), nil
}

// TodayActivities reports public activities on the current day in loc (UTC when nil).
func (s *archiveService) TodayActivities(ctx context.Context, loc *time.Location) ([]domain.Activity, error) {
	if _, err := s.Activities(ctx); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return s.cache.TodayActivities(s.clock().In(loc)), nil
}

// Refresh forces a refetch of key and waits for it to settle.
func (s *archiveService) Refresh(ctx context.Context, key cache.Collection) (cache.CollectionStatus, error) {
	if !key.Valid() {
		return cache.CollectionStatus{}, fmt.Errorf("%w: %q", cache.ErrUnknownCollection, key)
	}
	select {
	case <-s.cache.ForceRefresh(key):
	case <-ctx.Done():
		return cache.CollectionStatus{}, ctx.Err()
	}
	for _, status := range s.CacheStatus() {
		if status.Collection == key {
			return status, nil
		}
	}
	return cache.CollectionStatus{}, fmt.Errorf("%w: %q", cache.ErrUnknownCollection, key)
}

func (s *archiveService) CacheStatus() []cache.CollectionStatus {
	return s.cache.Status(s.clock())
}
