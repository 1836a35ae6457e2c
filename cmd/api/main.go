package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/memorial-heritage/api/internal/di"
	"github.com/memorial-heritage/api/internal/handlers"
	"github.com/memorial-heritage/api/internal/platform/auth"
	"github.com/memorial-heritage/api/internal/platform/config"
	pfirestore "github.com/memorial-heritage/api/internal/platform/firestore"
	"github.com/memorial-heritage/api/internal/platform/jobs"
	"github.com/memorial-heritage/api/internal/platform/locale"
	"github.com/memorial-heritage/api/internal/platform/observability"
	platformstorage "github.com/memorial-heritage/api/internal/platform/storage"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/services"
)

const (
	refreshLimit       = 6
	refreshWindow      = time.Minute
	storageCheckWindow = 2 * time.Second
	closeTimeout       = 5 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := observability.Component(baseLogger, "api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	resolver, err := newSecretResolver(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(resolver.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	clientOpts := googleClientOptions(cfg)

	var providerOpts []pfirestore.ProviderOption
	if len(clientOpts) > 0 {
		providerOpts = append(providerOpts, pfirestore.WithClientOptions(clientOpts...))
	}
	backend, err := di.OpenBackend(cfg, logger, providerOpts...)
	if err != nil {
		logger.Fatal("failed to open archive backend", zap.Error(err))
	}
	logger.Info("archive backend ready", zap.String("backend", backend.Name))

	var (
		storageClient *cloudstorage.Client
		extraChecks   []repositories.DependencyCheck
	)
	if bucket := strings.TrimSpace(cfg.Storage.MediaBucket); bucket != "" && backend.Name != "fixture" {
		storageClient, err = cloudstorage.NewClient(ctx, clientOpts...)
		if err != nil {
			logger.Warn("storage client unavailable; media bucket health check disabled", zap.Error(err))
		} else {
			defer func() {
				if err := storageClient.Close(); err != nil {
					logger.Warn("storage close error", zap.Error(err))
				}
			}()
			checker, err := platformstorage.NewBucketChecker(storageClient, bucket)
			if err != nil {
				logger.Fatal("failed to initialise bucket checker", zap.Error(err))
			}
			extraChecks = append(extraChecks, repositories.DependencyCheck{
				Name:    "storage",
				Timeout: storageCheckWindow,
				Check:   checker.Check,
			})
		}
	}

	mediaResolver, err := newMediaResolver(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise media resolver", zap.Error(err))
	}

	container, err := di.NewContainer(cfg, backend,
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo),
		di.WithDependencyChecks(extraChecks...),
	)
	if err != nil {
		logger.Fatal("failed to initialise container", zap.Error(err))
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := container.Warm(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("cache warm-up interrupted", zap.Error(err))
		}
	}()

	subscriberDone := make(chan struct{})
	pubsubClient, err := startRefreshSubscriber(runCtx, cfg.PubSub, container, logger, clientOpts, subscriberDone)
	if err != nil {
		logger.Fatal("failed to start refresh subscriber", zap.Error(err))
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(observability.Component(logger, "http")),
			observability.TraceMiddleware(traceProjectID(cfg)),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(observability.Component(logger, "http")),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(buildInfo),
			handlers.WithHealthSystemService(container.Services.System),
		)),
	}

	publicHandlers := handlers.NewPublicHandlers(
		handlers.WithPublicArchiveService(container.Services.Archive),
		handlers.WithPublicContentService(container.Services.Content),
		handlers.WithPublicMediaResolver(mediaResolver),
		handlers.WithPublicDefaultLocale(cfg.Archive.DefaultLocale),
		handlers.WithPublicNewsPageSize(cfg.Archive.NewsPageSize, 0),
		handlers.WithPublicRandomCount(cfg.Archive.RandomMartyrs),
		handlers.WithPublicTimezone(cfg.Archive.Location()),
	)
	opts = append(opts,
		handlers.WithPublicMiddlewares(locale.Middleware(locale.NewNegotiator(cfg.Archive.DefaultLocale))),
		handlers.WithPublicRoutes(publicHandlers.Routes),
	)

	authenticator, err := newAuthenticator(ctx, cfg)
	switch {
	case err != nil:
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	case authenticator == nil:
		logger.Warn("firebase project not configured; internal routes disabled")
	default:
		internalHandlers := handlers.NewInternalHandlers(container.Services.Archive,
			handlers.WithRefreshLimit(refreshLimit, refreshWindow, time.Now),
		)
		opts = append(opts,
			handlers.WithInternalMiddlewares(authenticator.RequireAdmin()),
			handlers.WithInternalRoutes(internalHandlers.Routes),
		)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("memorial archive api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if pubsubClient != nil {
		<-subscriberDone
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
	defer closeCancel()
	if err := container.Close(closeCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["ARCHIVE_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["ARCHIVE_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func googleClientOptions(cfg config.Config) []option.ClientOption {
	if path := strings.TrimSpace(cfg.Firebase.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	if raw := strings.TrimSpace(cfg.Firebase.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	return nil
}

func newMediaResolver(cfg config.StorageConfig) (*platformstorage.MediaResolver, error) {
	var opts []platformstorage.MediaOption
	if cfg.SignedURLs {
		signer, err := platformstorage.ParseSigningKey(cfg.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("parse storage signing key: %w", err)
		}
		opts = append(opts, platformstorage.WithSigner(signer))
	}
	return platformstorage.NewMediaResolver(cfg, opts...)
}

func newAuthenticator(ctx context.Context, cfg config.Config) (*auth.Authenticator, error) {
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		return nil, nil
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(verifier,
		auth.WithAdminClaim(cfg.Security.AdminClaim),
		auth.WithAdminEmails(cfg.Security.AdminEmails...),
	), nil
}

// startRefreshSubscriber returns a nil client when no subscription is configured; done is then
// never closed.
func startRefreshSubscriber(ctx context.Context, cfg config.PubSubConfig, container *di.Container, logger *zap.Logger, clientOpts []option.ClientOption, done chan<- struct{}) (*pubsub.Client, error) {
	name := strings.TrimSpace(cfg.RefreshSubscription)
	if name == "" {
		return nil, nil
	}
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" && os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		_ = os.Setenv("PUBSUB_EMULATOR_HOST", host)
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	subscriber, err := jobs.NewRefreshSubscriber(client.Subscription(name), container.Cache,
		jobs.WithSubscriberLogger(observability.Component(logger, "jobs.refresh")),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	go func() {
		defer close(done)
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresh subscriber stopped", zap.Error(err))
		}
	}()
	return client, nil
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
