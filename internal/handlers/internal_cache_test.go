package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/platform/auth"
)

type adminTokenVerifier struct{}

func (adminTokenVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	switch token {
	case "admin-token":
		return &firebaseauth.Token{UID: "op-1", Claims: map[string]interface{}{"admin": true}}, nil
	case "user-token":
		return &firebaseauth.Token{UID: "user-1", Claims: map[string]interface{}{}}, nil
	}
	return nil, errors.New("invalid token")
}

func newInternalTestRouter(archive *stubArchiveService) http.Handler {
	authn := auth.NewAuthenticator(adminTokenVerifier{})
	return NewRouter(
		WithInternalRoutes(NewInternalHandlers(archive).Routes),
		WithInternalMiddlewares(authn.RequireAdmin()),
	)
}

func TestInternalHandlersRequireAdmin(t *testing.T) {
	router := newInternalTestRouter(sampleArchive())

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "not admin", header: "Bearer user-token", status: http.StatusForbidden},
		{name: "admin", header: "Bearer admin-token", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/cache", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestInternalHandlersCacheStatus(t *testing.T) {
	fetched := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	archive := sampleArchive()
	archive.statuses = []cache.CollectionStatus{
		{Collection: cache.SiteSettings, Phase: cache.PhaseFresh, Items: 1, LastFetchedAt: fetched},
		{Collection: cache.Martyrs, Phase: cache.PhaseEmpty, Err: errors.New("failed to fetch martyrs: down"), ErrAt: fetched},
	}
	router := newInternalTestRouter(archive)

	var body cacheStatusResponse
	rr := serveJSON(t, router, http.MethodGet, "/api/v1/internal/cache", map[string]string{"Authorization": "Bearer admin-token"}, &body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(body.Collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(body.Collections))
	}
	if body.Collections[0].Collection != "siteSettings" || body.Collections[0].LastFetchedAt != "2024-05-01T08:00:00Z" {
		t.Fatalf("unexpected first status %+v", body.Collections[0])
	}
	if body.Collections[1].Phase != "empty" || body.Collections[1].Error == "" || body.Collections[1].ErrorAt == "" {
		t.Fatalf("expected error details on failed collection, got %+v", body.Collections[1])
	}
}

func TestInternalHandlersRefresh(t *testing.T) {
	archive := sampleArchive()
	router := newInternalTestRouter(archive)
	headers := map[string]string{"Authorization": "Bearer admin-token"}

	var body collectionStatusPayload
	rr := serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/site-settings:refresh", headers, &body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if archive.refreshKey != cache.SiteSettings || body.Collection != "siteSettings" || body.Items != 2 {
		t.Fatalf("unexpected refresh result key=%s body=%+v", archive.refreshKey, body)
	}

	rr = serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/wars:refresh", headers, nil)
	if rr.Code != http.StatusNotFound || decodeErrorCode(t, rr) != "collection_not_found" {
		t.Fatalf("expected collection_not_found, got %d %s", rr.Code, rr.Body.String())
	}

	archive.refreshErr = context.DeadlineExceeded
	rr = serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/martyrs:refresh", headers, nil)
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 when the refresh outlives the request, got %d", rr.Code)
	}
}

func TestInternalHandlersRefreshThrottle(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	archive := sampleArchive()
	authn := auth.NewAuthenticator(adminTokenVerifier{})
	router := NewRouter(
		WithInternalRoutes(NewInternalHandlers(archive, WithRefreshLimit(2, time.Minute, clock)).Routes),
		WithInternalMiddlewares(authn.RequireAdmin()),
	)
	headers := map[string]string{"Authorization": "Bearer admin-token"}

	for i := 0; i < 2; i++ {
		if rr := serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/martyrs:refresh", headers, nil); rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/martyrs:refresh", headers, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
	var throttled map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &throttled); err != nil {
		t.Fatalf("decode throttle body: %v", err)
	}
	if throttled["error"] != "refresh_throttled" || throttled["retryAfterSeconds"] != float64(60) {
		t.Fatalf("unexpected throttle body %v", throttled)
	}

	if rr := serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/legends:refresh", headers, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected other collections to be unaffected, got %d", rr.Code)
	}

	now = now.Add(time.Minute)
	if rr := serveJSON(t, router, http.MethodPost, "/api/v1/internal/cache/martyrs:refresh", headers, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected window to reopen, got %d", rr.Code)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	if newRefreshThrottle(0, time.Minute, nil) != nil {
		t.Fatalf("expected zero limit to disable throttling")
	}
	var throttle *refreshThrottle
	if ok, _ := throttle.Allow(cache.Martyrs); !ok {
		t.Fatalf("expected nil throttle to allow")
	}
}
