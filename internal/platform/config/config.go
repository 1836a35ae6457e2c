package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultSettingsDocument    = "main"
	defaultSignedURLTTL        = 15 * time.Minute
	defaultStaleWindow         = 10 * time.Minute
	defaultFetchTimeout        = 30 * time.Second
	defaultWarmStagger         = 100 * time.Millisecond
	defaultTimezone            = "UTC"
	defaultLocale              = "ar"
	defaultRandomMartyrs       = 6
	defaultNewsPageSize        = 20
	defaultSecurityEnvironment = "local"
	defaultAdminClaim          = "admin"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Archive   ArchiveConfig
	PubSub    PubSubConfig
	Security  SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings. CredentialsJSON may be a secret reference.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID        string
	EmulatorHost     string
	SettingsDocument string
}

// StorageConfig describes where media referenced by archive documents lives.
type StorageConfig struct {
	MediaBucket   string
	PublicBaseURL string
	SignedURLs    bool
	SignedURLTTL  time.Duration
	SigningKey    string
}

// CacheConfig tunes the in-memory archive cache.
type CacheConfig struct {
	StaleWindow  time.Duration
	FetchTimeout time.Duration
	WarmStagger  time.Duration
}

// ArchiveConfig holds presentation defaults for archive content.
type ArchiveConfig struct {
	Timezone      string
	DefaultLocale string
	FixtureFile   string
	RandomMartyrs int
	NewsPageSize  int
}

// PubSubConfig selects the subscription that delivers content change notifications.
type PubSubConfig struct {
	ProjectID           string
	RefreshSubscription string
	EmulatorHost        string
}

// SecurityConfig groups authentication settings for internal routes.
type SecurityConfig struct {
	Environment string
	AdminClaim  string
	AdminEmails []string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// Snapshot captures the resolved environment values used during loading so callers can construct
// dependent components (e.g., secret fetcher) with the same inputs.
type Snapshot struct {
	EnvFile         string
	Values          map[string]string
	ResolvedSecrets map[string]string
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers can use the result to initialise
// dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		if source == nil {
			return
		}
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		system := make(map[string]string)
		for _, entry := range os.Environ() {
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			system[key] = parts[1]
		}
		merge(system)
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers should match the config field names recorded by the loader
// (e.g. "Storage.SigningKey").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "ARCHIVE_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "ARCHIVE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "ARCHIVE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "ARCHIVE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "ARCHIVE_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "ARCHIVE_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "ARCHIVE_FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsJSON: stringWithDefault(lookup, "ARCHIVE_FIREBASE_CREDENTIALS_JSON", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:        stringWithDefault(lookup, "ARCHIVE_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:     stringWithDefault(lookup, "ARCHIVE_FIRESTORE_EMULATOR_HOST", ""),
			SettingsDocument: stringWithDefault(lookup, "ARCHIVE_FIRESTORE_SETTINGS_DOCUMENT", defaultSettingsDocument),
		},
		Storage: StorageConfig{
			MediaBucket:   stringWithDefault(lookup, "ARCHIVE_STORAGE_MEDIA_BUCKET", ""),
			PublicBaseURL: stringWithDefault(lookup, "ARCHIVE_STORAGE_PUBLIC_BASE_URL", ""),
			SignedURLs:    boolWithDefault(lookup, "ARCHIVE_STORAGE_SIGNED_URLS", false),
			SignedURLTTL:  durationWithDefault(lookup, "ARCHIVE_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
			SigningKey:    stringWithDefault(lookup, "ARCHIVE_STORAGE_SIGNING_KEY", ""),
		},
		Cache: CacheConfig{
			StaleWindow:  durationWithDefault(lookup, "ARCHIVE_CACHE_STALE_WINDOW", defaultStaleWindow),
			FetchTimeout: durationWithDefault(lookup, "ARCHIVE_CACHE_FETCH_TIMEOUT", defaultFetchTimeout),
			WarmStagger:  durationWithDefault(lookup, "ARCHIVE_CACHE_WARM_STAGGER", defaultWarmStagger),
		},
		Archive: ArchiveConfig{
			Timezone:      stringWithDefault(lookup, "ARCHIVE_TIMEZONE", defaultTimezone),
			DefaultLocale: strings.ToLower(stringWithDefault(lookup, "ARCHIVE_DEFAULT_LOCALE", defaultLocale)),
			FixtureFile:   stringWithDefault(lookup, "ARCHIVE_FIXTURE_FILE", ""),
			RandomMartyrs: intWithDefault(lookup, "ARCHIVE_RANDOM_MARTYRS", defaultRandomMartyrs),
			NewsPageSize:  intWithDefault(lookup, "ARCHIVE_NEWS_PAGE_SIZE", defaultNewsPageSize),
		},
		PubSub: PubSubConfig{
			ProjectID:           stringWithDefault(lookup, "ARCHIVE_PUBSUB_PROJECT_ID", ""),
			RefreshSubscription: stringWithDefault(lookup, "ARCHIVE_PUBSUB_REFRESH_SUBSCRIPTION", ""),
			EmulatorHost:        stringWithDefault(lookup, "ARCHIVE_PUBSUB_EMULATOR_HOST", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "ARCHIVE_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			AdminClaim:  stringWithDefault(lookup, "ARCHIVE_SECURITY_ADMIN_CLAIM", defaultAdminClaim),
			AdminEmails: csvWithDefault(lookup, "ARCHIVE_SECURITY_ADMIN_EMAILS"),
		},
	}

	resolvedSecrets := make(map[string]string)
	resolveField := func(name string, field *string) error {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return err
		}
		*field = resolved
		resolvedSecrets[name] = strings.TrimSpace(resolved)
		return nil
	}

	// Firestore and Pub/Sub default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Firebase.CredentialsJSON", &cfg.Firebase.CredentialsJSON},
		{"Storage.SigningKey", &cfg.Storage.SigningKey},
	}
	for _, target := range secretFields {
		if err := resolveField(target.name, target.field); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	// A fixture file replaces Firestore entirely, so project ids are optional in that mode.
	if cfg.Archive.FixtureFile == "" {
		if cfg.Firebase.ProjectID == "" {
			missing = append(missing, "Firebase.ProjectID")
		}
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	}
	if strings.TrimSpace(cfg.Firestore.SettingsDocument) == "" {
		missing = append(missing, "Firestore.SettingsDocument")
	}
	if cfg.Storage.SignedURLs {
		if cfg.Storage.MediaBucket == "" {
			missing = append(missing, "Storage.MediaBucket")
		}
		if cfg.Storage.SignedURLTTL <= 0 {
			missing = append(missing, "Storage.SignedURLTTL")
		}
	}
	if cfg.Cache.StaleWindow <= 0 {
		missing = append(missing, "Cache.StaleWindow")
	}
	if cfg.Cache.FetchTimeout <= 0 {
		missing = append(missing, "Cache.FetchTimeout")
	}
	if cfg.Cache.WarmStagger < 0 {
		missing = append(missing, "Cache.WarmStagger")
	}
	if _, err := time.LoadLocation(cfg.Archive.Timezone); err != nil || cfg.Archive.Timezone == "" {
		missing = append(missing, "Archive.Timezone")
	}
	switch cfg.Archive.DefaultLocale {
	case "ar", "en":
	default:
		missing = append(missing, "Archive.DefaultLocale")
	}
	if cfg.Archive.RandomMartyrs <= 0 {
		missing = append(missing, "Archive.RandomMartyrs")
	}
	if cfg.Archive.NewsPageSize <= 0 {
		missing = append(missing, "Archive.NewsPageSize")
	}
	if strings.TrimSpace(cfg.Security.AdminClaim) == "" {
		missing = append(missing, "Security.AdminClaim")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Location returns the configured archive time zone, falling back to UTC when it cannot be loaded.
func (c ArchiveConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil && c.Timezone != "" {
		return loc
	}
	return time.UTC
}
