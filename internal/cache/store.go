package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/domain"
)

const (
	// DefaultStaleWindow applies to every collection.
	DefaultStaleWindow  = 10 * time.Minute
	DefaultFetchTimeout = 30 * time.Second

	metricNamespace = "github.com/memorial-heritage/api/internal/cache"
)

// ErrStoreClosed is recorded as the fetch failure for fetches cancelled by Close.
var ErrStoreClosed = errors.New("cache: store closed")

// Source loads whole collections from the backing database.
type Source interface {
	ListLocations(ctx context.Context) ([]domain.Location, error)
	ListLegends(ctx context.Context) ([]domain.Legend, error)
	ListMartyrs(ctx context.Context) ([]domain.Martyr, error)
	ListActivities(ctx context.Context) ([]domain.Activity, error)
	GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error)
}

// Option customises Store construction.
type Option func(*Store)

// WithStaleWindow overrides how long a successful fetch is served without refetching.
func WithStaleWindow(window time.Duration) Option {
	return func(s *Store) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithFetchTimeout bounds every source call.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRandom sets the shuffle source used by RandomMartyrs.
func WithRandom(rnd *rand.Rand) Option {
	return func(s *Store) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Store) {
		if m != nil {
			s.meter = m
		}
	}
}

// Store caches the archive collections in memory and decides per request whether to fetch.
// At most one fetch per collection is in flight at any time.
type Store struct {
	source  Source
	window  time.Duration
	timeout time.Duration
	clock   func() time.Time
	logger  *zap.Logger
	meter   metric.Meter

	randMu sync.Mutex
	rnd    *rand.Rand

	mu       sync.Mutex
	state    State
	inflight map[Collection]chan struct{}
	closed   bool

	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	fetches        metric.Int64Counter
	fetchesOK      bool
	fetchLatency   metric.Float64Histogram
	fetchLatencyOK bool
}

// NewStore constructs an empty Store reading from source.
func NewStore(source Source, opts ...Option) (*Store, error) {
	if source == nil {
		return nil, errors.New("cache: source is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		source:   source,
		window:   DefaultStaleWindow,
		timeout:  DefaultFetchTimeout,
		clock:    time.Now,
		logger:   zap.NewNop(),
		inflight: make(map[Collection]chan struct{}),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.meter == nil {
		s.meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	var err error
	s.fetches, err = s.meter.Int64Counter(
		"archive.cache.fetches",
		metric.WithDescription("Count of collection fetches by outcome"),
	)
	if err != nil {
		s.logger.Warn("cache: unable to register fetch counter", zap.Error(err))
	}
	s.fetchesOK = err == nil

	s.fetchLatency, err = s.meter.Float64Histogram(
		"archive.cache.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for collection fetches"),
	)
	if err != nil {
		s.logger.Warn("cache: unable to register fetch latency metric", zap.Error(err))
	}
	s.fetchLatencyOK = err == nil

	return s, nil
}

// StaleWindow returns the configured staleness window.
func (s *Store) StaleWindow() time.Duration {
	return s.window
}

// Request makes key available, fetching it when it is neither loading nor fresh. The returned
// channel is closed once the collection settles; it is already closed when no fetch was needed.
func (s *Store) Request(key Collection) <-chan struct{} {
	return s.request(key, false)
}

// ForceRefresh refetches key regardless of staleness. A fetch already in flight is joined rather
// than duplicated.
func (s *Store) ForceRefresh(key Collection) <-chan struct{} {
	return s.request(key, true)
}

// Ensure requests key and waits until it settles or ctx is done. Fetch failures are not returned;
// they are recorded in the collection's Meta.
func (s *Store) Ensure(ctx context.Context, key Collection) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, key)
	}
	done := s.Request(key)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Warm issues Request for each key in order, pausing stagger between them. An empty order uses
// WarmOrder. Completions may arrive in any order.
func (s *Store) Warm(ctx context.Context, order []Collection, stagger time.Duration) error {
	if len(order) == 0 {
		order = WarmOrder
	}
	for i, key := range order {
		if i > 0 && stagger > 0 {
			timer := time.NewTimer(stagger)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Request(key)
	}
	return nil
}

// Snapshot returns the current state. Item slices are shared and must not be modified.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels in-flight fetches and waits for them to settle. Later requests do not fetch.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Store) request(key Collection, force bool) <-chan struct{} {
	if !key.Valid() {
		return closedChan()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedChan()
	}
	if s.state.Meta(key).Loading {
		if ch, ok := s.inflight[key]; ok {
			return ch
		}
	}
	if !force && s.state.Fresh(key, s.clock(), s.window) {
		return closedChan()
	}

	s.state = Reduce(s.state, FetchStarted{Key: key})
	done := make(chan struct{})
	s.inflight[key] = done
	s.wg.Add(1)
	go s.fetch(key, done)
	return done
}

func (s *Store) fetch(key Collection, done chan struct{}) {
	defer s.wg.Done()

	attempt := ulid.Make().String()
	logger := s.logger.With(zap.String("collection", key.String()), zap.String("attempt", attempt))
	logger.Debug("cache: fetch started")

	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	started := time.Now()
	action := s.load(ctx, key)
	elapsed := time.Since(started)

	s.mu.Lock()
	s.state = Reduce(s.state, action)
	delete(s.inflight, key)
	count := s.state.Len(key)
	s.mu.Unlock()
	close(done)

	outcome := "success"
	if failed, ok := action.(FetchFailed); ok {
		outcome = "error"
		logger.Warn("cache: fetch failed", zap.Error(failed.Err), zap.Duration("elapsed", elapsed))
	} else {
		logger.Debug("cache: fetch completed", zap.Int("items", count), zap.Duration("elapsed", elapsed))
	}
	s.record(key, outcome, elapsed)
}

// load runs the source call for key. The call runs on its own goroutine so that a source which
// ignores ctx still settles the collection when ctx expires.
func (s *Store) load(ctx context.Context, key Collection) Action {
	results := make(chan Action, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				results <- s.failed(key, fmt.Errorf("source panic: %v", rec))
			}
		}()
		results <- s.call(ctx, key)
	}()

	select {
	case action := <-results:
		return action
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(s.baseCtx.Err(), context.Canceled) {
			err = ErrStoreClosed
		}
		return s.failed(key, err)
	}
}

func (s *Store) call(ctx context.Context, key Collection) Action {
	switch key {
	case Locations:
		items, err := s.source.ListLocations(ctx)
		if err != nil {
			return s.failed(key, err)
		}
		return LocationsFetched{Items: items, At: s.clock()}
	case Legends:
		items, err := s.source.ListLegends(ctx)
		if err != nil {
			return s.failed(key, err)
		}
		return LegendsFetched{Items: items, At: s.clock()}
	case Martyrs:
		items, err := s.source.ListMartyrs(ctx)
		if err != nil {
			return s.failed(key, err)
		}
		return MartyrsFetched{Items: items, At: s.clock()}
	case Activities:
		items, err := s.source.ListActivities(ctx)
		if err != nil {
			return s.failed(key, err)
		}
		return ActivitiesFetched{Items: items, At: s.clock()}
	case SiteSettings:
		value, err := s.source.GetSiteSettings(ctx)
		if err != nil {
			return s.failed(key, err)
		}
		return SettingsFetched{Value: value, At: s.clock()}
	}
	return s.failed(key, ErrUnknownCollection)
}

func (s *Store) failed(key Collection, err error) FetchFailed {
	return FetchFailed{Key: key, Err: err, At: s.clock()}
}

func (s *Store) record(key Collection, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("collection", key.String()),
		attribute.String("outcome", outcome),
	)
	ctx := context.Background()
	if s.fetchesOK {
		s.fetches.Add(ctx, 1, attrs)
	}
	if s.fetchLatencyOK {
		s.fetchLatency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
