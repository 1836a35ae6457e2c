package records

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseTime accepts the shapes date fields take in stored documents: native timestamps, ISO
// strings, exported {seconds} maps and unix milliseconds. Unparseable values report false.
func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseTimeString(v)
	case int64:
		return time.UnixMilli(v).UTC(), v != 0
	case int:
		return time.UnixMilli(int64(v)).UTC(), v != 0
	case float64:
		return time.UnixMilli(int64(v)).UTC(), v != 0
	case map[string]any:
		for _, key := range []string{"seconds", "_seconds"} {
			if secs, ok := v[key]; ok {
				if n, ok := toInt64(secs); ok {
					return time.Unix(n, 0).UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

func parseTimeString(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// optionalTime converts a stored date into a pointer, nil when missing or malformed.
func optionalTime(value any) *time.Time {
	t, ok := parseTime(value)
	if !ok {
		return nil
	}
	return &t
}

// timeOrZero converts a stored date, returning the zero time when missing or malformed.
func timeOrZero(value any) time.Time {
	t, _ := parseTime(value)
	return t
}
