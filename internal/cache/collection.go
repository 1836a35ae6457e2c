package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCollection is returned when a collection name is outside the fixed key set.
var ErrUnknownCollection = errors.New("cache: unknown collection")

// Collection names one of the cached resource sets.
type Collection string

const (
	Locations    Collection = "locations"
	Legends      Collection = "legends"
	Martyrs      Collection = "martyrs"
	Activities   Collection = "activities"
	SiteSettings Collection = "siteSettings"
)

// WarmOrder is the order collections are requested in during start-up.
var WarmOrder = []Collection{SiteSettings, Legends, Locations, Martyrs, Activities}

// Collections returns every collection key in warm-up order.
func Collections() []Collection {
	out := make([]Collection, len(WarmOrder))
	copy(out, WarmOrder)
	return out
}

// String implements fmt.Stringer.
func (c Collection) String() string {
	return string(c)
}

// Valid reports whether c is one of the known keys.
func (c Collection) Valid() bool {
	switch c {
	case Locations, Legends, Martyrs, Activities, SiteSettings:
		return true
	}
	return false
}

// ParseCollection maps a user supplied name onto a Collection. Matching ignores case and accepts
// "site-settings" and "site_settings" for SiteSettings.
func ParseCollection(name string) (Collection, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "locations":
		return Locations, nil
	case "legends":
		return Legends, nil
	case "martyrs":
		return Martyrs, nil
	case "activities":
		return Activities, nil
	case "sitesettings", "site-settings", "site_settings", "settings":
		return SiteSettings, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}
