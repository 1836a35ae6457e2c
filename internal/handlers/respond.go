package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/platform/httpx"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/platform/requestctx"
	"github.com/memorial-heritage/api/internal/repositories"
	"github.com/memorial-heritage/api/internal/services"
)

// writeArchiveError maps service and repository failures onto the JSON error envelope.
func writeArchiveError(ctx context.Context, w http.ResponseWriter, err error, resource string) {
	if err == nil {
		return
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		resource = "resource"
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(fmt.Sprintf("%s_not_found", resource), fmt.Sprintf("%s not found", resource), http.StatusNotFound))
		return
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("archive_unavailable", err.Error(), http.StatusServiceUnavailable))
		return
	case errors.Is(err, services.ErrContentRepositoryMissing):
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	case errors.Is(err, cache.ErrUnknownCollection):
		httpx.WriteError(ctx, w, httpx.NewError("collection_not_found", err.Error(), http.StatusNotFound))
		return
	case errors.Is(err, pagination.ErrInvalidPageSize), errors.Is(err, pagination.ErrInvalidPageToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError(fmt.Sprintf("%s_not_found", resource), fmt.Sprintf("%s not found", resource), http.StatusNotFound))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("archive_unavailable", "archive repository unavailable", http.StatusServiceUnavailable))
			return
		}
	}

	requestctx.Logger(ctx).Error("archive request failed", zap.String("resource", resource), zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("archive_error", "unexpected error", http.StatusInternalServerError))
}

// writeCachedJSON writes payload with a weak ETag over its encoded body and answers 304 when the
// request already holds that version.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, cacheControl string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("encode_failed", err.Error(), http.StatusInternalServerError))
		return
	}

	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	etag := computeETag(requestctx.Locale(r.Context()), body)
	w.Header().Set("ETag", etag)
	if matchesETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func computeETag(locale string, body []byte) string {
	hash := sha256.New()
	hash.Write([]byte(locale))
	hash.Write([]byte("|"))
	hash.Write(body)
	return fmt.Sprintf("W/\"%x\"", hash.Sum(nil)[:16])
}

func matchesETag(r *http.Request, etag string) bool {
	if etag == "" || r == nil {
		return false
	}
	raw := r.Header.Get("If-None-Match")
	if strings.TrimSpace(raw) == "" {
		return false
	}
	for _, candidate := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "*" || trimmed == etag {
			return true
		}
	}
	return false
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatTimestamp(*ts)
}
