package cache

import (
	"fmt"
	"time"

	"github.com/memorial-heritage/api/internal/domain"
)

// Meta tracks the fetch lifecycle of a single collection. LastFetchedAt is zero until the first
// successful fetch and only moves on success. Err is the last failure of this collection and is
// cleared when the next fetch starts.
type Meta struct {
	Loading       bool
	LastFetchedAt time.Time
	Err           error
	ErrAt         time.Time
}

// Entry holds the cached items of a list collection.
type Entry[T any] struct {
	Items []T
	Meta
}

// SettingsEntry holds the singleton site settings document.
type SettingsEntry struct {
	Value *domain.SiteSettings
	Meta
}

// State is the full cache contents. Values are treated as immutable: Reduce returns a new State
// and never mutates the slices of the previous one.
type State struct {
	Locations  Entry[domain.Location]
	Legends    Entry[domain.Legend]
	Martyrs    Entry[domain.Martyr]
	Activities Entry[domain.Activity]
	Settings   SettingsEntry

	// LastErr is the most recent failure across all collections. A later success elsewhere does
	// not clear it; starting any fetch does.
	LastErr error
}

// Meta returns the lifecycle metadata of key.
func (s State) Meta(key Collection) Meta {
	switch key {
	case Locations:
		return s.Locations.Meta
	case Legends:
		return s.Legends.Meta
	case Martyrs:
		return s.Martyrs.Meta
	case Activities:
		return s.Activities.Meta
	case SiteSettings:
		return s.Settings.Meta
	}
	return Meta{}
}

// Len reports how many items key holds. Settings count as one item once loaded.
func (s State) Len(key Collection) int {
	switch key {
	case Locations:
		return len(s.Locations.Items)
	case Legends:
		return len(s.Legends.Items)
	case Martyrs:
		return len(s.Martyrs.Items)
	case Activities:
		return len(s.Activities.Items)
	case SiteSettings:
		if s.Settings.Value != nil {
			return 1
		}
	}
	return 0
}

// Fresh reports whether key can be served without fetching: it has been fetched within window
// and holds at least one item.
func (s State) Fresh(key Collection, now time.Time, window time.Duration) bool {
	meta := s.Meta(key)
	if meta.LastFetchedAt.IsZero() || s.Len(key) == 0 {
		return false
	}
	return now.Sub(meta.LastFetchedAt) <= window
}

// Phase is the derived lifecycle state of a collection.
type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseLoading Phase = "loading"
	PhaseFresh   Phase = "fresh"
	PhaseStale   Phase = "stale"
)

// Phase derives the lifecycle state of key at now.
func (s State) Phase(key Collection, now time.Time, window time.Duration) Phase {
	meta := s.Meta(key)
	switch {
	case meta.Loading:
		return PhaseLoading
	case meta.LastFetchedAt.IsZero():
		return PhaseEmpty
	case s.Fresh(key, now, window):
		return PhaseFresh
	}
	return PhaseStale
}

// FetchError is the collection specific failure recorded in Meta.Err.
type FetchError struct {
	Collection Collection
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Collection, e.Err)
}

// Unwrap exposes the underlying source error.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Action is a state transition dispatched to Reduce.
type Action interface {
	Collection() Collection
}

// FetchStarted marks key as loading.
type FetchStarted struct {
	Key Collection
}

// FetchFailed records a failed fetch. Cached items and LastFetchedAt are left untouched.
type FetchFailed struct {
	Key Collection
	Err error
	At  time.Time
}

// LocationsFetched replaces the cached locations.
type LocationsFetched struct {
	Items []domain.Location
	At    time.Time
}

// LegendsFetched replaces the cached legends.
type LegendsFetched struct {
	Items []domain.Legend
	At    time.Time
}

// MartyrsFetched replaces the cached martyrs.
type MartyrsFetched struct {
	Items []domain.Martyr
	At    time.Time
}

// ActivitiesFetched replaces the cached activities.
type ActivitiesFetched struct {
	Items []domain.Activity
	At    time.Time
}

// SettingsFetched replaces the cached site settings.
type SettingsFetched struct {
	Value *domain.SiteSettings
	At    time.Time
}

func (a FetchStarted) Collection() Collection { return a.Key }
func (a FetchFailed) Collection() Collection { return a.Key }
func (LocationsFetched) Collection() Collection { return Locations }
func (LegendsFetched) Collection() Collection { return Legends }
func (MartyrsFetched) Collection() Collection { return Martyrs }
func (ActivitiesFetched) Collection() Collection { return Activities }
func (SettingsFetched) Collection() Collection { return SiteSettings }

// Reduce applies action to state and returns the next state. Unknown actions and collections
// leave the state unchanged.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case FetchStarted:
		if !a.Key.Valid() {
			return state
		}
		state.updateMeta(a.Key, func(m *Meta) {
			m.Loading = true
			m.Err = nil
			m.ErrAt = time.Time{}
		})
		state.LastErr = nil
	case FetchFailed:
		if !a.Key.Valid() {
			return state
		}
		err := &FetchError{Collection: a.Key, Err: a.Err}
		state.updateMeta(a.Key, func(m *Meta) {
			m.Loading = false
			m.Err = err
			m.ErrAt = a.At
		})
		state.LastErr = err
	case LocationsFetched:
		state.Locations = Entry[domain.Location]{Items: a.Items, Meta: succeeded(state.Locations.Meta, a.At)}
	case LegendsFetched:
		state.Legends = Entry[domain.Legend]{Items: a.Items, Meta: succeeded(state.Legends.Meta, a.At)}
	case MartyrsFetched:
		state.Martyrs = Entry[domain.Martyr]{Items: a.Items, Meta: succeeded(state.Martyrs.Meta, a.At)}
	case ActivitiesFetched:
		state.Activities = Entry[domain.Activity]{Items: a.Items, Meta: succeeded(state.Activities.Meta, a.At)}
	case SettingsFetched:
		state.Settings = SettingsEntry{Value: a.Value, Meta: succeeded(state.Settings.Meta, a.At)}
	}
	return state
}

func succeeded(prev Meta, at time.Time) Meta {
	prev.Loading = false
	prev.LastFetchedAt = at
	return prev
}

func (s *State) updateMeta(key Collection, fn func(*Meta)) {
	switch key {
	case Locations:
		fn(&s.Locations.Meta)
	case Legends:
		fn(&s.Legends.Meta)
	case Martyrs:
		fn(&s.Martyrs.Meta)
	case Activities:
		fn(&s.Activities.Meta)
	case SiteSettings:
		fn(&s.Settings.Meta)
	}
}
