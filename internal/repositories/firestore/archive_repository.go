package firestore

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/domain"
	pfirestore "github.com/memorial-heritage/api/internal/platform/firestore"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/repositories/records"
)

const (
	locationsCollection  = "locations"
	legendsCollection    = "legends"
	martyrsCollection    = "martyrs"
	activitiesCollection = "activities"
	warsCollection       = "wars"
	settingsCollection   = "siteSettings"
)

// ArchiveRepository reads the archive collections from Firestore.
type ArchiveRepository struct {
	locations   *pfirestore.Collection[domain.Location]
	legends     *pfirestore.Collection[domain.Legend]
	martyrs     *pfirestore.Collection[domain.Martyr]
	activities  *pfirestore.Collection[domain.Activity]
	wars        *pfirestore.Collection[domain.War]
	settings    *pfirestore.Collection[*domain.SiteSettings]
	settingsDoc string
}

var _ repositories.ArchiveRepository = (*ArchiveRepository)(nil)

// NewArchiveRepository constructs a Firestore-backed archive repository. settingsDocument names
// the singleton document inside the siteSettings collection.
func NewArchiveRepository(provider *pfirestore.Provider, settingsDocument string, logger *zap.Logger) (*ArchiveRepository, error) {
	if provider == nil {
		return nil, errors.New("archive repository: firestore provider is required")
	}
	settingsDocument = strings.TrimSpace(settingsDocument)
	if settingsDocument == "" {
		return nil, errors.New("archive repository: settings document is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	withLogger := pfirestore.WithCollectionLogger(logger)

	return &ArchiveRepository{
		locations:   pfirestore.NewCollection(provider, locationsCollection, pfirestore.RecordDecoder[records.Location, domain.Location](), withLogger),
		legends:     pfirestore.NewCollection(provider, legendsCollection, pfirestore.RecordDecoder[records.Legend, domain.Legend](), withLogger),
		martyrs:     pfirestore.NewCollection(provider, martyrsCollection, pfirestore.RecordDecoder[records.Martyr, domain.Martyr](), withLogger),
		activities:  pfirestore.NewCollection(provider, activitiesCollection, pfirestore.RecordDecoder[records.Activity, domain.Activity](), withLogger),
		wars:        pfirestore.NewCollection(provider, warsCollection, pfirestore.RecordDecoder[records.War, domain.War](), withLogger),
		settings:    pfirestore.NewCollection(provider, settingsCollection, pfirestore.RecordDecoder[records.SiteSettings, *domain.SiteSettings](), withLogger),
		settingsDoc: settingsDocument,
	}, nil
}

// ListLocations returns every valid location.
func (r *ArchiveRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return r.locations.List(ctx, nil)
}

// ListLegends returns every valid legend.
func (r *ArchiveRepository) ListLegends(ctx context.Context) ([]domain.Legend, error) {
	return r.legends.List(ctx, nil)
}

// ListMartyrs returns every valid martyr.
func (r *ArchiveRepository) ListMartyrs(ctx context.Context) ([]domain.Martyr, error) {
	return r.martyrs.List(ctx, nil)
}

// ListActivities returns every valid activity, newest first. Undated activities are listed last.
func (r *ArchiveRepository) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	activities, err := r.activities.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	domain.SortActivitiesNewestFirst(activities)
	return activities, nil
}

// GetSiteSettings returns the settings document, or nil when it does not exist yet.
func (r *ArchiveRepository) GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	settings, err := r.settings.Get(ctx, r.settingsDoc)
	if pfirestore.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// GetLocation loads one location by document id.
func (r *ArchiveRepository) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	return r.locations.Get(ctx, id)
}

// GetMartyr loads one martyr by document id.
func (r *ArchiveRepository) GetMartyr(ctx context.Context, id string) (domain.Martyr, error) {
	return r.martyrs.Get(ctx, id)
}

// GetActivity loads one activity by document id.
func (r *ArchiveRepository) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return r.activities.Get(ctx, id)
}

// GetWar loads one war by document id.
func (r *ArchiveRepository) GetWar(ctx context.Context, id string) (domain.War, error) {
	return r.wars.Get(ctx, id)
}
