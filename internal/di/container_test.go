package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/config"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/services"
)

const fixturePath = "../repositories/fixture/testdata/archive.yaml"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.Config {
	return config.Config{
		Cache: config.CacheConfig{
			StaleWindow:  time.Minute,
			FetchTimeout: 5 * time.Second,
		},
		Archive: config.ArchiveConfig{
			FixtureFile:  fixturePath,
			NewsPageSize: 10,
		},
	}
}

func TestNewContainerWithFixtureBackend(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	backend, err := OpenBackend(cfg, logger)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	if backend.Name != "fixture" {
		t.Fatalf("expected fixture backend, got %s", backend.Name)
	}

	container, err := NewContainer(cfg, backend,
		WithLogger(logger),
		WithBuildInfo(services.BuildInfo{Version: "test", Environment: "local"}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer func() {
		if err := container.Close(context.Background()); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := container.Warm(ctx); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	martyrs, err := container.Services.Archive.Martyrs(ctx)
	if err != nil {
		t.Fatalf("Martyrs: %v", err)
	}
	if len(martyrs) == 0 {
		t.Fatalf("expected fixture martyrs to be served through the cache")
	}

	if container.Services.Content == nil {
		t.Fatalf("expected content service for fixture backend")
	}
	page, err := container.Services.Content.ListNews(ctx, services.NewsListRequest{})
	if err != nil {
		t.Fatalf("ListNews: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatalf("expected fixture news")
	}

	report, err := container.Services.System.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok report, got %+v", report)
	}
	if _, ok := report.Checks["cache"]; !ok {
		t.Fatalf("expected cache check in report, got %+v", report.Checks)
	}
	if report.Version != "test" {
		t.Fatalf("expected build info to flow into report, got %q", report.Version)
	}
}

func TestNewContainerAddsDependencyChecks(t *testing.T) {
	cfg := testConfig()
	backend, err := OpenFixtureBackend(fixturePath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("OpenFixtureBackend: %v", err)
	}
	container, err := NewContainer(cfg, backend, WithDependencyChecks(repositories.DependencyCheck{
		Name:  "storage",
		Check: func(context.Context) error { return errors.New("bucket missing") },
	}))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer container.Close(context.Background())

	report, err := container.Services.System.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected non-critical failure to degrade, got %s", report.Status)
	}
	if report.Checks["storage"].Error != "bucket missing" {
		t.Fatalf("unexpected storage check %+v", report.Checks["storage"])
	}
}

func TestNewContainerRequiresBackend(t *testing.T) {
	if _, err := NewContainer(testConfig(), nil); err == nil {
		t.Fatalf("expected error without backend")
	}
}

func TestOpenBackendRejectsMissingFixture(t *testing.T) {
	cfg := testConfig()
	cfg.Archive.FixtureFile = "testdata/does-not-exist.yaml"
	if _, err := OpenBackend(cfg, nil); err == nil {
		t.Fatalf("expected error for missing fixture file")
	}
}

func TestOpenBackendRequiresFirestoreProject(t *testing.T) {
	cfg := testConfig()
	cfg.Archive.FixtureFile = ""
	if _, err := OpenBackend(cfg, nil); err == nil {
		t.Fatalf("expected error without firestore project")
	}
}
