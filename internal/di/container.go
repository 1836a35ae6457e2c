package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/platform/config"
	"github.com/memorial-heritage/api/internal/platform/richtext"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Archive services.ArchiveService
	Content services.ContentService
	System  services.SystemService
}

// Container wires the archive backend, cache, and services for runtime use.
type Container struct {
	Config   config.Config
	Backend  *Backend
	Cache    *cache.Store
	Services Services

	logger *zap.Logger
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger *zap.Logger
	clock  func() time.Time
	build  services.BuildInfo
	checks []repositories.DependencyCheck
}

// WithLogger sets the logger handed to the cache and services.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock shared by the services.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBuildInfo records the build metadata reported by health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// WithDependencyChecks adds readiness probes beyond those the backend and cache provide.
func WithDependencyChecks(checks ...repositories.DependencyCheck) Option {
	return func(o *containerOptions) {
		o.checks = append(o.checks, checks...)
	}
}

// NewContainer constructs the runtime dependencies on top of an opened backend. The container
// takes ownership of the backend and closes it in Close.
func NewContainer(cfg config.Config, backend *Backend, opts ...Option) (*Container, error) {
	if backend == nil || backend.Archive == nil {
		return nil, errors.New("archive backend is required")
	}
	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	store, err := cache.NewStore(backend.Archive,
		cache.WithStaleWindow(cfg.Cache.StaleWindow),
		cache.WithFetchTimeout(cfg.Cache.FetchTimeout),
		cache.WithClock(options.clock),
		cache.WithLogger(options.logger.Named("cache")),
	)
	if err != nil {
		return nil, fmt.Errorf("build archive cache: %w", err)
	}

	svc, err := buildServices(cfg, backend, store, options)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Backend:  backend,
		Cache:    store,
		Services: svc,
		logger:   options.logger,
	}, nil
}

// Warm requests every collection in warm-up order, spacing requests by the configured stagger.
func (c *Container) Warm(ctx context.Context) error {
	if c == nil || c.Cache == nil {
		return nil
	}
	return c.Cache.Warm(ctx, cache.WarmOrder, c.Config.Cache.WarmStagger)
}

// Close stops in-flight cache fetches and releases backend clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Cache != nil {
		c.Cache.Close()
	}
	return c.Backend.Close(ctx)
}

func buildServices(cfg config.Config, backend *Backend, store *cache.Store, options containerOptions) (Services, error) {
	var svc Services

	archiveSvc, err := services.NewArchiveService(services.ArchiveServiceDeps{
		Cache:      store,
		Repository: backend.Archive,
		Clock:      options.clock,
		Logger:     options.logger.Named("archive"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build archive service: %w", err)
	}
	svc.Archive = archiveSvc

	if backend.Content != nil {
		contentSvc, err := services.NewContentService(services.ContentServiceDeps{
			Repository:      backend.Content,
			Renderer:        richtext.New(),
			DefaultPageSize: cfg.Archive.NewsPageSize,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build content service: %w", err)
		}
		svc.Content = contentSvc
	}

	checks := make([]repositories.DependencyCheck, 0, len(backend.Checks)+len(options.checks)+1)
	checks = append(checks, backend.Checks...)
	checks = append(checks, options.checks...)
	checks = append(checks, cacheCheck(store, options.clock))
	healthRepo, err := repositories.NewDependencyHealthRepository(checks, repositories.WithDependencyClock(options.clock))
	if err != nil {
		return Services{}, fmt.Errorf("build health repository: %w", err)
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            options.clock,
		Build:            options.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// cacheCheck degrades readiness while any collection has no data and its last fetch failed.
func cacheCheck(store *cache.Store, clock func() time.Time) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name: "cache",
		Check: func(context.Context) error {
			var failed []error
			for _, status := range store.Status(clock()) {
				if status.Phase == cache.PhaseEmpty && status.Err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", status.Collection, status.Err))
				}
			}
			return errors.Join(failed...)
		},
	}
}
