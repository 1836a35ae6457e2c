package cache

import (
	"slices"
	"time"

	"github.com/memorial-heritage/api/internal/domain"
)

// CollectionStatus reports the cache state of one collection.
type CollectionStatus struct {
	Collection    Collection
	Phase         Phase
	Items         int
	LastFetchedAt time.Time
	Err           error
	ErrAt         time.Time
}

// Status reports every collection in warm-up order as of now.
func (s *Store) Status(now time.Time) []CollectionStatus {
	state := s.Snapshot()
	out := make([]CollectionStatus, 0, len(WarmOrder))
	for _, key := range WarmOrder {
		meta := state.Meta(key)
		out = append(out, CollectionStatus{
			Collection:    key,
			Phase:         state.Phase(key, now, s.window),
			Items:         state.Len(key),
			LastFetchedAt: meta.LastFetchedAt,
			Err:           meta.Err,
			ErrAt:         meta.ErrAt,
		})
	}
	return out
}

// RandomMartyrs returns up to n cached martyrs drawn without replacement. Every call reshuffles.
func (s *Store) RandomMartyrs(n int) []domain.Martyr {
	items := s.Snapshot().Martyrs.Items
	if n <= 0 || len(items) == 0 {
		return []domain.Martyr{}
	}

	shuffled := slices.Clone(items)
	s.randMu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.randMu.Unlock()

	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// TodayActivities returns public cached activities dated within the local day of now, using
// now's location. Activities without a date are skipped.
func (s *Store) TodayActivities(now time.Time) []domain.Activity {
	start, end := LocalDay(now)
	items := s.Snapshot().Activities.Items
	out := make([]domain.Activity, 0)
	for _, activity := range items {
		if activity.IsPrivate || activity.Date.IsZero() {
			continue
		}
		if activity.Date.Before(start) || !activity.Date.Before(end) {
			continue
		}
		out = append(out, activity)
	}
	return out
}

// LocalDay returns local midnight of now's day and the next local midnight. The end is the next
// calendar midnight rather than start plus 24h.
func LocalDay(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return start, end
}

// LookupLocation returns a cached location by id without fetching.
func (s *Store) LookupLocation(id string) (domain.Location, bool) {
	return lookup(s.Snapshot().Locations.Items, id, func(v domain.Location) string { return v.ID })
}

// LookupLegend returns a cached legend by id without fetching.
func (s *Store) LookupLegend(id string) (domain.Legend, bool) {
	return lookup(s.Snapshot().Legends.Items, id, func(v domain.Legend) string { return v.ID })
}

// LookupMartyr returns a cached martyr by id without fetching.
func (s *Store) LookupMartyr(id string) (domain.Martyr, bool) {
	return lookup(s.Snapshot().Martyrs.Items, id, func(v domain.Martyr) string { return v.ID })
}

// LookupActivity returns a cached activity by id without fetching.
func (s *Store) LookupActivity(id string) (domain.Activity, bool) {
	return lookup(s.Snapshot().Activities.Items, id, func(v domain.Activity) string { return v.ID })
}

func lookup[T any](items []T, id string, idOf func(T) string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}
	for _, item := range items {
		if idOf(item) == id {
			return item, true
		}
	}
	return zero, false
}
