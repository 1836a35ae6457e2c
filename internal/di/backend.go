package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/platform/config"
	pfirestore "github.com/memorial-heritage/api/internal/platform/firestore"
	"github.com/memorial-heritage/api/internal/repositories"
	firestoreRepo "github.com/memorial-heritage/api/internal/repositories/firestore"
	"github.com/memorial-heritage/api/internal/repositories/fixture"
)

const firestoreCheckTimeout = 1500 * time.Millisecond

// Backend is the persistence layer behind the archive: either Firestore or a YAML fixture.
type Backend struct {
	Name    string
	Archive repositories.ArchiveRepository
	Content repositories.ContentRepository
	Checks  []repositories.DependencyCheck

	close func(context.Context) error
}

// Close releases clients owned by the backend.
func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// OpenBackend selects the fixture backend when Archive.FixtureFile is set and Firestore otherwise.
func OpenBackend(cfg config.Config, logger *zap.Logger, opts ...pfirestore.ProviderOption) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path := strings.TrimSpace(cfg.Archive.FixtureFile); path != "" {
		return OpenFixtureBackend(path, logger)
	}
	return OpenFirestoreBackend(cfg, logger, opts...)
}

// OpenFixtureBackend serves archive and content documents from a YAML file.
func OpenFixtureBackend(path string, logger *zap.Logger) (*Backend, error) {
	repo, err := fixture.Load(path, logger.Named("fixture"))
	if err != nil {
		return nil, fmt.Errorf("load fixture backend: %w", err)
	}
	return &Backend{
		Name:    "fixture",
		Archive: repo,
		Content: repo,
		Checks: []repositories.DependencyCheck{{
			Name:     "fixture",
			Critical: true,
			Check:    func(context.Context) error { return nil },
		}},
	}, nil
}

// OpenFirestoreBackend builds Firestore repositories over a shared lazily dialled client.
func OpenFirestoreBackend(cfg config.Config, logger *zap.Logger, opts ...pfirestore.ProviderOption) (*Backend, error) {
	if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		return nil, errors.New("firestore backend: project id is required")
	}
	provider := pfirestore.NewProvider(cfg.Firestore, opts...)
	repoLogger := logger.Named("firestore")

	archiveRepo, err := firestoreRepo.NewArchiveRepository(provider, cfg.Firestore.SettingsDocument, repoLogger)
	if err != nil {
		return nil, fmt.Errorf("build archive repository: %w", err)
	}
	contentRepo, err := firestoreRepo.NewContentRepository(provider, repoLogger)
	if err != nil {
		return nil, fmt.Errorf("build content repository: %w", err)
	}

	return &Backend{
		Name:    "firestore",
		Archive: archiveRepo,
		Content: contentRepo,
		Checks: []repositories.DependencyCheck{{
			Name:     "firestore",
			Timeout:  firestoreCheckTimeout,
			Critical: true,
			Check:    provider.Ping,
		}},
		close: provider.Close,
	}, nil
}
