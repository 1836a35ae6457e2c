package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" || !params.Cursor.IsZero() {
		t.Fatalf("expected first page, got %#v", params)
	}
}

func TestParseLimit(t *testing.T) {
	opts := Options{DefaultPageSize: 10, MaxPageSize: 20}

	params, err := Parse(url.Values{"limit": {"15"}}, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 15 {
		t.Fatalf("expected page size 15 got %d", params.PageSize)
	}

	params, err = Parse(url.Values{"pageSize": {"400"}}, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}

	params, err = Parse(url.Values{}, Options{DefaultPageSize: 80, MaxPageSize: 20})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 20 {
		t.Fatalf("expected default clamped to max, got %d", params.PageSize)
	}
}

func TestParseInvalidLimit(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		if _, err := Parse(url.Values{"limit": {raw}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("%q: expected ErrInvalidPageSize got %v", raw, err)
		}
	}
}

func TestPageTokenRoundTrip(t *testing.T) {
	cursor := Cursor{PublishedAt: time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC), ID: "news-42"}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}

	req := httptest.NewRequest("GET", "/news?pageToken="+token, nil)
	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageToken != token {
		t.Fatalf("expected token to be preserved")
	}
	if !params.Cursor.PublishedAt.Equal(cursor.PublishedAt) || params.Cursor.ID != cursor.ID {
		t.Fatalf("unexpected cursor %#v", params.Cursor)
	}
}

func TestEncodeZeroCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q %v", token, err)
	}
}

func TestParseInvalidPageToken(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", "e30"} {
		if _, err := Parse(url.Values{"pageToken": {token}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("%q: expected ErrInvalidPageToken got %v", token, err)
		}
	}
}
