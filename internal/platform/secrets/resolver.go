package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	metricNamespace     = "github.com/memorial-heritage/api/internal/platform/secrets"
)

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver turns secret:// references found in configuration into values. Values come from
// Secret Manager, or from a local KEY=VALUE file when the backend is unreachable or unconfigured.
// Resolved values are cached for the life of the process.
type Resolver struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger

	env         string
	project     string
	projectMap  map[string]string
	versionPins map[string]string

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group

	latency   metric.Float64Histogram
	latencyOK bool
	hits      metric.Int64Counter
	hitsOK    bool
}

type resolverConfig struct {
	logger       *zap.Logger
	env          string
	project      string
	projectMap   map[string]string
	versionPins  map[string]string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Resolver construction.
type Option func(*resolverConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *resolverConfig) {
		cfg.logger = logger
	}
}

// WithEnvironment selects the key used to look up per-environment projects and version pins.
func WithEnvironment(env string) Option {
	return func(cfg *resolverConfig) {
		cfg.env = strings.ToLower(strings.TrimSpace(env))
	}
}

// WithDefaultProject configures the project used when no environment mapping matches.
func WithDefaultProject(projectID string) Option {
	return func(cfg *resolverConfig) {
		cfg.project = strings.TrimSpace(projectID)
	}
}

// WithProjectMap supplies environment-specific project IDs.
func WithProjectMap(m map[string]string) Option {
	return func(cfg *resolverConfig) {
		cfg.projectMap = copyMap(m)
	}
}

// WithVersionPins sets explicit versions keyed by canonical reference, optionally prefixed "env:".
func WithVersionPins(pins map[string]string) Option {
	return func(cfg *resolverConfig) {
		cfg.versionPins = copyMap(pins)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *resolverConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *resolverConfig) {
		cfg.meter = m
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *resolverConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *resolverConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewResolver builds a Resolver. A Secret Manager client that cannot be created is not an error;
// the resolver then serves from the fallback file only.
func NewResolver(ctx context.Context, opts ...Option) (*Resolver, error) {
	cfg := resolverConfig{
		logger:       zap.NewNop(),
		env:          defaultEnvironment,
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.env == "" {
		cfg.env = defaultEnvironment
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	r := &Resolver{
		logger:       cfg.logger,
		env:          cfg.env,
		project:      cfg.project,
		projectMap:   copyMap(cfg.projectMap),
		versionPins:  copyMap(cfg.versionPins),
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}

	var err error
	r.latency, err = meter.Float64Histogram(
		"secrets.resolve.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret resolution"),
	)
	if err != nil {
		cfg.logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	}
	r.latencyOK = err == nil

	r.hits, err = meter.Int64Counter(
		"secrets.resolve.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"),
	)
	if err != nil {
		cfg.logger.Warn("secrets: unable to register cache hit metric", zap.Error(err))
	}
	r.hitsOK = err == nil

	if cfg.client != nil {
		r.client = cfg.client
		return r, nil
	}
	client, err := newSecretManagerClient(ctx, cfg.clientOpts...)
	if err != nil {
		cfg.logger.Warn("secrets: secret manager client unavailable; serving fallback file only", zap.Error(err))
		return r, nil
	}
	r.client = client
	r.ownsClient = true
	return r, nil
}

// Close releases the Secret Manager client when the resolver created it.
func (r *Resolver) Close() error {
	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Resolve returns the value for ref. Concurrent calls for the same reference share one backend
// request.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	version := r.version(parsed)
	key := cacheKey(parsed.Canonical, version)

	r.mu.RLock()
	value, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		if r.hitsOK {
			r.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", mask(parsed.Canonical))))
		}
		r.observe(ctx, start, "cache", nil)
		return value, nil
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		value, source, err := r.load(ctx, parsed, version)
		if err != nil {
			r.observe(ctx, start, "error", err)
			return "", err
		}
		r.mu.Lock()
		r.cache[key] = value
		r.mu.Unlock()
		r.observe(ctx, start, source, nil)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *Resolver) load(ctx context.Context, ref Reference, version string) (string, string, error) {
	project := r.projectFor(ref)
	if project != "" && r.client != nil {
		resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: ref.resourceName(project, version),
		})
		switch {
		case err == nil && resp.GetPayload() != nil:
			return string(resp.GetPayload().GetData()), "remote", nil
		case err == nil:
			return "", "", fmt.Errorf("secrets: empty payload for %s", ref.Canonical)
		case !usesFallback(err):
			return "", "", fmt.Errorf("secrets: fetch failed for %s: %w", ref.Canonical, err)
		}
		r.logger.Debug("secrets: falling back to local file", zap.String("ref", ref.Canonical), zap.Error(err))
	}

	value, ok := r.lookupFallback(ref, version)
	if !ok {
		return "", "", fmt.Errorf("secrets: fallback value not found for %s", ref.Canonical)
	}
	return value, "fallback", nil
}

func (r *Resolver) projectFor(ref Reference) string {
	if ref.Project != "" {
		return ref.Project
	}
	if id := strings.TrimSpace(r.projectMap[r.env]); id != "" {
		return id
	}
	return r.project
}

func (r *Resolver) version(ref Reference) string {
	if ref.Version != "" {
		return ref.Version
	}
	if pin := strings.TrimSpace(r.versionPins[r.env+":"+ref.Canonical]); pin != "" {
		return pin
	}
	if pin := strings.TrimSpace(r.versionPins[ref.Canonical]); pin != "" {
		return pin
	}
	return latest
}

func (r *Resolver) lookupFallback(ref Reference, version string) (string, bool) {
	r.fallbackOnce.Do(r.loadFallback)
	if r.fallbackErr != nil {
		r.logger.Debug("secrets: fallback file unreadable", zap.Error(r.fallbackErr))
		return "", false
	}
	if value, ok := r.fallback[cacheKey(ref.Canonical, version)]; ok {
		return value, true
	}
	value, ok := r.fallback[ref.Canonical]
	return value, ok
}

func (r *Resolver) loadFallback() {
	r.fallback = map[string]string{}
	if r.fallbackPath == "" {
		return
	}
	path, err := filepath.Abs(r.fallbackPath)
	if err != nil {
		path = r.fallbackPath
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		r.fallbackErr = fmt.Errorf("secrets: open fallback file %s: %w", path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		ref, err := ParseReference(key)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		version := ref.Version
		if version == "" {
			version = latest
			r.fallback[ref.Canonical] = value
		}
		r.fallback[cacheKey(ref.Canonical, version)] = value
	}
	if err := scanner.Err(); err != nil {
		r.fallbackErr = fmt.Errorf("secrets: read fallback file %s: %w", path, err)
	}
}

func (r *Resolver) observe(ctx context.Context, start time.Time, source string, err error) {
	if !r.latencyOK {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.String("code", status.Code(errors.Unwrap(err)).String()))
	}
	r.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

// IsNotFound reports whether the backend answered that the secret or version does not exist.
func IsNotFound(err error) bool {
	for err != nil {
		if status.Code(err) == codes.NotFound {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// usesFallback reports whether a backend failure should be answered from the local file.
// Missing secrets are real errors and never fall back.
func usesFallback(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func copyMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
