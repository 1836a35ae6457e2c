package handlers

import (
	"sync"
	"time"

	"github.com/memorial-heritage/api/internal/cache"
)

// refreshThrottle caps manual refreshes per collection within a fixed window so operators cannot
// hammer the backing store.
type refreshThrottle struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[cache.Collection]refreshWindow
}

type refreshWindow struct {
	count int
	reset time.Time
}

func newRefreshThrottle(limit int, window time.Duration, clock func() time.Time) *refreshThrottle {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &refreshThrottle{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[cache.Collection]refreshWindow),
	}
}

// Allow records an attempt for key. When the attempt is rejected it also returns how long until
// the window reopens.
func (t *refreshThrottle) Allow(key cache.Collection) (bool, time.Duration) {
	if t == nil {
		return true, 0
	}
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.windows[key]
	if !ok || !now.Before(entry.reset) {
		t.windows[key] = refreshWindow{count: 1, reset: now.Add(t.window)}
		return true, 0
	}
	if entry.count >= t.limit {
		return false, entry.reset.Sub(now)
	}
	entry.count++
	t.windows[key] = entry
	return true, 0
}
