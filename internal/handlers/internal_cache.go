package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/cache"
	"github.com/memorial-heritage/api/internal/platform/auth"
	"github.com/memorial-heritage/api/internal/platform/httpx"
	"github.com/memorial-heritage/api/internal/platform/requestctx"
	"github.com/memorial-heritage/api/internal/services"
)

// InternalHandlers exposes operator endpoints for the archive cache.
type InternalHandlers struct {
	archive  services.ArchiveService
	throttle *refreshThrottle
}

// InternalOption customises InternalHandlers.
type InternalOption func(*InternalHandlers)

// WithRefreshLimit allows at most limit manual refreshes per collection within window.
func WithRefreshLimit(limit int, window time.Duration, clock func() time.Time) InternalOption {
	return func(h *InternalHandlers) {
		h.throttle = newRefreshThrottle(limit, window, clock)
	}
}

// NewInternalHandlers constructs the operator handlers.
func NewInternalHandlers(archive services.ArchiveService, opts ...InternalOption) *InternalHandlers {
	h := &InternalHandlers{archive: archive}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the cache endpoints. Authentication is applied by the /internal group.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cache", h.cacheStatus)
	r.Post("/cache/{collection}:refresh", h.refreshCollection)
}

type collectionStatusPayload struct {
	Collection    string `json:"collection"`
	Phase         string `json:"phase"`
	Items         int    `json:"items"`
	LastFetchedAt string `json:"lastFetchedAt,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorAt       string `json:"errorAt,omitempty"`
}

type cacheStatusResponse struct {
	Collections []collectionStatusPayload `json:"collections"`
}

func newCollectionStatusPayload(status cache.CollectionStatus) collectionStatusPayload {
	payload := collectionStatusPayload{
		Collection:    status.Collection.String(),
		Phase:         string(status.Phase),
		Items:         status.Items,
		LastFetchedAt: formatTimestamp(status.LastFetchedAt),
		ErrorAt:       formatTimestamp(status.ErrAt),
	}
	if status.Err != nil {
		payload.Error = status.Err.Error()
	}
	return payload
}

func (h *InternalHandlers) cacheStatus(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("archive_unavailable", "archive service is unavailable", http.StatusServiceUnavailable))
		return
	}
	statuses := h.archive.CacheStatus()
	out := make([]collectionStatusPayload, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, newCollectionStatusPayload(status))
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, cacheStatusResponse{Collections: out})
}

func (h *InternalHandlers) refreshCollection(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("archive_unavailable", "archive service is unavailable", http.StatusServiceUnavailable))
		return
	}
	key, err := cache.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		writeArchiveError(r.Context(), w, err, "collection")
		return
	}

	if ok, retryAfter := h.throttle.Allow(key); !ok {
		seconds := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		httpx.WriteError(r.Context(), w, httpx.NewError("refresh_throttled", "too many refreshes for "+key.String(), http.StatusTooManyRequests).
			WithDetails(map[string]any{"retryAfterSeconds": seconds}))
		return
	}

	fields := []zap.Field{zap.String("collection", key.String())}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.Email != "" {
		fields = append(fields, zap.String("requested_by", identity.Email))
	}
	requestctx.Logger(r.Context()).Info("cache refresh requested", fields...)

	status, err := h.archive.Refresh(r.Context(), key)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "collection")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, newCollectionStatusPayload(status))
}
