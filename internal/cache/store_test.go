package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/domain"
)

type stubSource struct {
	mu    sync.Mutex
	calls map[cache.Collection]int
	errs  map[cache.Collection]error

	// gate blocks every call until closed. When ignoreCtx is set the call also ignores ctx.
	gate      chan struct{}
	ignoreCtx bool

	locations  []domain.Location
	legends    []domain.Legend
	martyrs    []domain.Martyr
	activities []domain.Activity
	settings   *domain.SiteSettings
}

func newStubSource() *stubSource {
	return &stubSource{
		calls: make(map[cache.Collection]int),
		errs:  make(map[cache.Collection]error),
	}
}

func (s *stubSource) enter(ctx context.Context, key cache.Collection) error {
	s.mu.Lock()
	s.calls[key]++
	gate := s.gate
	ignoreCtx := s.ignoreCtx
	err := s.errs[key]
	s.mu.Unlock()

	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (s *stubSource) setErr(key cache.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key] = err
}

func (s *stubSource) setGate(gate chan struct{}, ignoreCtx bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
	s.ignoreCtx = ignoreCtx
}

func (s *stubSource) callCount(key cache.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *stubSource) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if err := s.enter(ctx, cache.Locations); err != nil {
		return nil, err
	}
	return s.locations, nil
}

func (s *stubSource) ListLegends(ctx context.Context) ([]domain.Legend, error) {
	if err := s.enter(ctx, cache.Legends); err != nil {
		return nil, err
	}
	return s.legends, nil
}

func (s *stubSource) ListMartyrs(ctx context.Context) ([]domain.Martyr, error) {
	if err := s.enter(ctx, cache.Martyrs); err != nil {
		return nil, err
	}
	return s.martyrs, nil
}

func (s *stubSource) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	if err := s.enter(ctx, cache.Activities); err != nil {
		return nil, err
	}
	return s.activities, nil
}

func (s *stubSource) GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	if err := s.enter(ctx, cache.SiteSettings); err != nil {
		return nil, err
	}
	return s.settings, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T, source cache.Source, opts ...cache.Option) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(source, opts...)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch to settle")
	}
}

func TestNewStoreRequiresSource(t *testing.T) {
	_, err := cache.NewStore(nil)
	require.Error(t, err)
}

func TestRequestDeduplicatesConcurrentFetches(t *testing.T) {
	source := newStubSource()
	source.locations = []domain.Location{{ID: "loc-1"}}
	gate := make(chan struct{})
	source.setGate(gate, false)

	store := newStore(t, source)

	first := store.Request(cache.Locations)
	second := store.Request(cache.Locations)
	require.True(t, first == second, "second request joins the in-flight fetch")
	require.True(t, store.Snapshot().Locations.Loading)

	close(gate)
	waitFor(t, first)

	require.Equal(t, 1, source.callCount(cache.Locations))
	snapshot := store.Snapshot()
	require.False(t, snapshot.Locations.Loading)
	require.Len(t, snapshot.Locations.Items, 1)
}

func TestRequestHonoursStaleWindow(t *testing.T) {
	source := newStubSource()
	source.martyrs = []domain.Martyr{{ID: "m-1"}}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}

	store := newStore(t, source, cache.WithClock(clock.Now), cache.WithStaleWindow(10*time.Minute))

	waitFor(t, store.Request(cache.Martyrs))
	require.Equal(t, 1, source.callCount(cache.Martyrs))

	clock.Advance(10 * time.Minute)
	waitFor(t, store.Request(cache.Martyrs))
	require.Equal(t, 1, source.callCount(cache.Martyrs), "fresh within the window")

	clock.Advance(time.Millisecond)
	waitFor(t, store.Request(cache.Martyrs))
	require.Equal(t, 2, source.callCount(cache.Martyrs), "stale after the window")
}

func TestRequestRefetchesEmptyCollection(t *testing.T) {
	source := newStubSource()
	store := newStore(t, source)

	waitFor(t, store.Request(cache.Activities))
	waitFor(t, store.Request(cache.Activities))
	require.Equal(t, 2, source.callCount(cache.Activities))
}

func TestFailedFetchServesStaleItems(t *testing.T) {
	source := newStubSource()
	source.legends = []domain.Legend{{ID: "l-1"}, {ID: "l-2"}}
	store := newStore(t, source)

	require.NoError(t, store.Ensure(context.Background(), cache.Legends))
	fetchedAt := store.Snapshot().Legends.LastFetchedAt
	require.False(t, fetchedAt.IsZero())

	boom := errors.New("firestore unavailable")
	source.setErr(cache.Legends, boom)
	waitFor(t, store.ForceRefresh(cache.Legends))

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Legends.Items, 2)
	require.False(t, snapshot.Legends.Loading)
	require.Equal(t, fetchedAt, snapshot.Legends.LastFetchedAt)
	require.ErrorIs(t, snapshot.Legends.Err, boom)
	require.ErrorIs(t, snapshot.LastErr, boom)

	var fetchErr *cache.FetchError
	require.ErrorAs(t, snapshot.Legends.Err, &fetchErr)
	require.Equal(t, cache.Legends, fetchErr.Collection)
}

func TestForceRefreshBypassesWindowAndJoinsInFlight(t *testing.T) {
	source := newStubSource()
	source.settings = &domain.SiteSettings{SiteTitleEn: "Archive"}
	store := newStore(t, source)

	require.NoError(t, store.Ensure(context.Background(), cache.SiteSettings))
	waitFor(t, store.Request(cache.SiteSettings))
	require.Equal(t, 1, source.callCount(cache.SiteSettings))

	gate := make(chan struct{})
	source.setGate(gate, false)

	first := store.ForceRefresh(cache.SiteSettings)
	second := store.ForceRefresh(cache.SiteSettings)
	third := store.Request(cache.SiteSettings)
	require.True(t, first == second)
	require.True(t, first == third)

	close(gate)
	waitFor(t, first)
	require.Equal(t, 2, source.callCount(cache.SiteSettings))
}

func TestFetchTimeoutSettlesHungSource(t *testing.T) {
	source := newStubSource()
	gate := make(chan struct{})
	source.setGate(gate, true)
	defer close(gate)

	store := newStore(t, source, cache.WithFetchTimeout(20*time.Millisecond))

	waitFor(t, store.Request(cache.Locations))
	snapshot := store.Snapshot()
	require.False(t, snapshot.Locations.Loading)
	require.ErrorIs(t, snapshot.Locations.Err, context.DeadlineExceeded)
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	source := newStubSource()
	gate := make(chan struct{})
	defer close(gate)
	source.setGate(gate, false)

	store, err := cache.NewStore(source)
	require.NoError(t, err)

	done := store.Request(cache.Martyrs)
	store.Close()
	waitFor(t, done)

	snapshot := store.Snapshot()
	require.False(t, snapshot.Martyrs.Loading)
	require.Error(t, snapshot.Martyrs.Err)
	require.True(t,
		errors.Is(snapshot.Martyrs.Err, context.Canceled) || errors.Is(snapshot.Martyrs.Err, cache.ErrStoreClosed),
		"unexpected error %v", snapshot.Martyrs.Err)

	waitFor(t, store.Request(cache.Martyrs))
	require.Equal(t, 1, source.callCount(cache.Martyrs), "closed store does not fetch")
}

func TestSourcePanicIsRecordedAsFailure(t *testing.T) {
	store := newStore(t, panicSource{})

	waitFor(t, store.Request(cache.Activities))
	snapshot := store.Snapshot()
	require.False(t, snapshot.Activities.Loading)
	require.ErrorContains(t, snapshot.Activities.Err, "panic")
}

func TestEnsureHonoursContext(t *testing.T) {
	source := newStubSource()
	gate := make(chan struct{})
	defer close(gate)
	source.setGate(gate, false)
	store := newStore(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, store.Ensure(ctx, cache.Legends), context.DeadlineExceeded)

	require.ErrorIs(t, store.Ensure(context.Background(), cache.Collection("news")), cache.ErrUnknownCollection)
}

func TestWarmRequestsEveryCollection(t *testing.T) {
	source := newStubSource()
	gate := make(chan struct{})
	source.setGate(gate, false)
	store := newStore(t, source)

	require.NoError(t, store.Warm(context.Background(), nil, 0))
	snapshot := store.Snapshot()
	for _, key := range cache.Collections() {
		require.True(t, snapshot.Meta(key).Loading, "collection %s", key)
	}
	close(gate)
}

func TestWarmStopsOnCancelledContext(t *testing.T) {
	source := newStubSource()
	store := newStore(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, store.Warm(ctx, nil, time.Millisecond), context.Canceled)
	for _, key := range cache.Collections() {
		require.Zero(t, source.callCount(key))
	}
}

func TestStatusReportsPhases(t *testing.T) {
	source := newStubSource()
	source.locations = []domain.Location{{ID: "loc"}}
	source.setErr(cache.Legends, errors.New("down"))
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newStore(t, source, cache.WithClock(clock.Now))

	waitFor(t, store.Request(cache.Locations))
	waitFor(t, store.Request(cache.Legends))

	status := store.Status(clock.Now())
	require.Len(t, status, 5)

	byKey := make(map[cache.Collection]cache.CollectionStatus)
	for _, s := range status {
		byKey[s.Collection] = s
	}
	require.Equal(t, cache.PhaseFresh, byKey[cache.Locations].Phase)
	require.Equal(t, 1, byKey[cache.Locations].Items)
	require.Equal(t, cache.PhaseEmpty, byKey[cache.Legends].Phase)
	require.Error(t, byKey[cache.Legends].Err)
	require.Equal(t, cache.PhaseEmpty, byKey[cache.Martyrs].Phase)

	clock.Advance(time.Hour)
	require.Equal(t, cache.PhaseStale, store.Status(clock.Now())[2].Phase)
}

type panicSource struct{}

func (panicSource) ListLocations(context.Context) ([]domain.Location, error) {
	panic("boom")
}

func (panicSource) ListLegends(context.Context) ([]domain.Legend, error) {
	panic("boom")
}

func (panicSource) ListMartyrs(context.Context) ([]domain.Martyr, error) {
	panic("boom")
}

func (panicSource) ListActivities(context.Context) ([]domain.Activity, error) {
	panic("boom")
}

func (panicSource) GetSiteSettings(context.Context) (*domain.SiteSettings, error) {
	panic("boom")
}
