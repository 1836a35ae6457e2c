package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client sends no limit.
	DefaultPageSize = 12
	// DefaultMaxPageSize caps the limit to keep Firestore queries bounded.
	DefaultMaxPageSize = 50
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid limit")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params carries the page size and decoded cursor of a list request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// Options control defaults and bounds for a given endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest parses pagination parameters from the query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads "limit" (or "pageSize") and "pageToken". Oversized limits are clamped rather than
// rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	raw := values.Get("limit")
	if strings.TrimSpace(raw) == "" {
		raw = values.Get("pageSize")
	}
	pageSize, err := parsePageSize(raw, opts)
	if err != nil {
		return Params{}, err
	}

	token := strings.TrimSpace(values.Get("pageToken"))
	cursor, err := DecodeToken(token)
	if err != nil {
		return Params{}, err
	}

	return Params{PageSize: pageSize, PageToken: token, Cursor: cursor}, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}
