package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/httpx"
	"github.com/memorial-heritage/api/internal/platform/locale"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/services"
)

const (
	archiveCacheControl = "public, max-age=60"
	contentCacheControl = "public, max-age=300"
	defaultRandomCount  = 3
	maxRandomCount      = 50
)

// MediaURLResolver turns stored media references into loadable URLs.
type MediaURLResolver interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// MediaURLResolverFunc adapts a function to the MediaURLResolver interface.
type MediaURLResolverFunc func(ctx context.Context, ref string) (string, error)

// ResolveURL implements MediaURLResolver.
func (fn MediaURLResolverFunc) ResolveURL(ctx context.Context, ref string) (string, error) {
	if fn == nil {
		return ref, nil
	}
	return fn(ctx, ref)
}

// PublicHandlers exposes the unauthenticated archive and content endpoints.
type PublicHandlers struct {
	archive       services.ArchiveService
	content       services.ContentService
	media         MediaURLResolver
	defaultLocale string
	pageOpts      pagination.Options
	randomCount   int
	timezone      *time.Location
	clock         func() time.Time
}

// PublicOption customises construction of PublicHandlers.
type PublicOption func(*PublicHandlers)

// WithPublicArchiveService injects the archive service dependency.
func WithPublicArchiveService(svc services.ArchiveService) PublicOption {
	return func(h *PublicHandlers) {
		h.archive = svc
	}
}

// WithPublicContentService injects the content service dependency.
func WithPublicContentService(svc services.ContentService) PublicOption {
	return func(h *PublicHandlers) {
		h.content = svc
	}
}

// WithPublicMediaResolver sets the resolver used for every image reference.
func WithPublicMediaResolver(resolver MediaURLResolver) PublicOption {
	return func(h *PublicHandlers) {
		if resolver != nil {
			h.media = resolver
		}
	}
}

// WithPublicDefaultLocale sets the display locale used when no locale was negotiated.
func WithPublicDefaultLocale(loc string) PublicOption {
	return func(h *PublicHandlers) {
		if loc = strings.TrimSpace(loc); loc != "" {
			h.defaultLocale = loc
		}
	}
}

// WithPublicNewsPageSize overrides the default and maximum news page sizes.
func WithPublicNewsPageSize(defaultSize, maxSize int) PublicOption {
	return func(h *PublicHandlers) {
		if defaultSize > 0 {
			h.pageOpts.DefaultPageSize = defaultSize
		}
		if maxSize > 0 {
			h.pageOpts.MaxPageSize = maxSize
		}
	}
}

// WithPublicRandomCount sets how many martyrs /martyrs/random returns without a count parameter.
func WithPublicRandomCount(n int) PublicOption {
	return func(h *PublicHandlers) {
		if n > 0 && n <= maxRandomCount {
			h.randomCount = n
		}
	}
}

// WithPublicTimezone sets the zone used for /activities/today when tz is omitted.
func WithPublicTimezone(loc *time.Location) PublicOption {
	return func(h *PublicHandlers) {
		if loc != nil {
			h.timezone = loc
		}
	}
}

// WithPublicClock overrides the clock used to label the "today" listing.
func WithPublicClock(clock func() time.Time) PublicOption {
	return func(h *PublicHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewPublicHandlers constructs handlers for public archive endpoints.
func NewPublicHandlers(opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{
		media: MediaURLResolverFunc(func(_ context.Context, ref string) (string, error) {
			return ref, nil
		}),
		defaultLocale: locale.Arabic,
		randomCount:   defaultRandomCount,
		timezone:      time.UTC,
		clock:         time.Now,
		pageOpts: pagination.Options{
			DefaultPageSize: pagination.DefaultPageSize,
			MaxPageSize:     pagination.DefaultMaxPageSize,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers public endpoints against the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/settings", h.getSettings)
	r.Get("/locations", h.listLocations)
	r.Get("/locations/{ref}", h.getLocation)
	r.Get("/legends", h.listLegends)
	r.Get("/martyrs", h.listMartyrs)
	r.Get("/martyrs/random", h.randomMartyrs)
	r.Get("/martyrs/{ref}", h.getMartyr)
	r.Get("/activities", h.listActivities)
	r.Get("/activities/today", h.todayActivities)
	r.Get("/activities/{ref}", h.getActivity)
	r.Get("/news", h.listNews)
	r.Get("/news/{newsId}", h.getNews)
	r.Get("/pages/{slug}", h.getPage)
}

func (h *PublicHandlers) present(r *http.Request) presenter {
	return newPresenter(r.Context(), h.media, h.defaultLocale)
}

func (h *PublicHandlers) requireArchive(w http.ResponseWriter, r *http.Request) bool {
	if h.archive == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("archive_unavailable", "archive service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *PublicHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	settings, err := h.archive.SiteSettings(r.Context())
	if err != nil {
		writeArchiveError(r.Context(), w, err, "settings")
		return
	}
	writeCachedJSON(w, r, archiveCacheControl, h.present(r).settings(settings))
}

type locationListResponse struct {
	Locations []locationPayload `json:"locations"`
}

func (h *PublicHandlers) listLocations(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	locations, err := h.archive.Locations(r.Context())
	if err != nil {
		writeArchiveError(r.Context(), w, err, "location")
		return
	}

	legendID := strings.TrimSpace(r.URL.Query().Get("legend"))
	p := h.present(r)
	out := make([]locationPayload, 0, len(locations))
	for _, location := range locations {
		if legendID != "" && location.LegendID != legendID {
			continue
		}
		out = append(out, p.location(location))
	}
	writeCachedJSON(w, r, archiveCacheControl, locationListResponse{Locations: out})
}

func (h *PublicHandlers) getLocation(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	ref, ok := refParam(w, r, "ref", "location")
	if !ok {
		return
	}
	location, err := h.archive.ResolveLocation(r.Context(), ref)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "location")
		return
	}

	p := h.present(r)
	payload := p.location(location)
	if location.LegendID != "" {
		legend, err := h.archive.Legend(r.Context(), location.LegendID)
		if err != nil {
			p.logger.Warn("legend lookup failed", zap.String("legendId", location.LegendID), zap.Error(err))
		} else if legend != nil {
			lp := p.legend(*legend)
			payload.Legend = &lp
		}
	}
	writeCachedJSON(w, r, archiveCacheControl, payload)
}

type legendListResponse struct {
	Legends []legendPayload `json:"legends"`
}

func (h *PublicHandlers) listLegends(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	legends, err := h.archive.Legends(r.Context())
	if err != nil {
		writeArchiveError(r.Context(), w, err, "legend")
		return
	}
	p := h.present(r)
	out := make([]legendPayload, 0, len(legends))
	for _, legend := range legends {
		out = append(out, p.legend(legend))
	}
	writeCachedJSON(w, r, archiveCacheControl, legendListResponse{Legends: out})
}

type martyrListResponse struct {
	Martyrs []martyrPayload `json:"martyrs"`
}

func (h *PublicHandlers) listMartyrs(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	martyrs, err := h.archive.Martyrs(r.Context())
	if err != nil {
		writeArchiveError(r.Context(), w, err, "martyr")
		return
	}

	warID := strings.TrimSpace(r.URL.Query().Get("war"))
	p := h.present(r)
	out := make([]martyrPayload, 0, len(martyrs))
	for _, martyr := range martyrs {
		if warID != "" && martyr.WarID != warID {
			continue
		}
		out = append(out, p.martyr(martyr))
	}
	writeCachedJSON(w, r, archiveCacheControl, martyrListResponse{Martyrs: out})
}

// randomMartyrs is reshuffled on every call and therefore never cached.
func (h *PublicHandlers) randomMartyrs(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	count := h.randomCount
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxRandomCount {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "count must be between 0 and 50", http.StatusBadRequest))
			return
		}
		count = n
	}

	martyrs, err := h.archive.RandomMartyrs(r.Context(), count)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "martyr")
		return
	}
	p := h.present(r)
	out := make([]martyrPayload, 0, len(martyrs))
	for _, martyr := range martyrs {
		out = append(out, p.martyr(martyr))
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, martyrListResponse{Martyrs: out})
}

func (h *PublicHandlers) getMartyr(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	ref, ok := refParam(w, r, "ref", "martyr")
	if !ok {
		return
	}
	martyr, err := h.archive.ResolveMartyr(r.Context(), ref)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "martyr")
		return
	}

	p := h.present(r)
	payload := p.martyr(martyr)
	war, err := h.archive.MartyrWar(r.Context(), martyr)
	if err != nil {
		p.logger.Warn("war lookup failed", zap.String("warId", martyr.WarID), zap.Error(err))
	} else if war != nil {
		wp := p.war(*war)
		payload.War = &wp
	}
	writeCachedJSON(w, r, archiveCacheControl, payload)
}

type activityListResponse struct {
	Activities []activityPayload `json:"activities"`
}

// listActivities returns public activities, newest first. Private activities are never listed.
func (h *PublicHandlers) listActivities(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	activities, err := h.archive.Activities(r.Context())
	if err != nil {
		writeArchiveError(r.Context(), w, err, "activity")
		return
	}

	locationID := strings.TrimSpace(r.URL.Query().Get("location"))
	p := h.present(r)
	out := make([]activityPayload, 0, len(activities))
	for _, activity := range activities {
		if activity.IsPrivate {
			continue
		}
		if locationID != "" && activity.LocationID != locationID {
			continue
		}
		out = append(out, p.activity(activity))
	}
	writeCachedJSON(w, r, archiveCacheControl, activityListResponse{Activities: out})
}

type todayResponse struct {
	Date       string            `json:"date"`
	Timezone   string            `json:"timezone"`
	Activities []activityPayload `json:"activities"`
}

// todayActivities filters on the caller's calendar day. The tz parameter names an IANA zone.
func (h *PublicHandlers) todayActivities(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	loc := h.timezone
	if raw := strings.TrimSpace(r.URL.Query().Get("tz")); raw != "" {
		parsed, err := time.LoadLocation(raw)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_timezone", "tz must be an IANA time zone name", http.StatusBadRequest))
			return
		}
		loc = parsed
	}

	activities, err := h.archive.TodayActivities(r.Context(), loc)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "activity")
		return
	}
	p := h.present(r)
	out := make([]activityPayload, 0, len(activities))
	for _, activity := range activities {
		out = append(out, p.activity(activity))
	}
	w.Header().Set("Cache-Control", "no-cache")
	httpx.WriteJSON(w, http.StatusOK, todayResponse{
		Date:       h.clock().In(loc).Format(time.DateOnly),
		Timezone:   loc.String(),
		Activities: out,
	})
}

func (h *PublicHandlers) getActivity(w http.ResponseWriter, r *http.Request) {
	if !h.requireArchive(w, r) {
		return
	}
	ref, ok := refParam(w, r, "ref", "activity")
	if !ok {
		return
	}
	activity, err := h.archive.ResolveActivity(r.Context(), ref)
	if err == nil && activity.IsPrivate {
		err = services.ErrNotFound
	}
	if err != nil {
		writeArchiveError(r.Context(), w, err, "activity")
		return
	}

	p := h.present(r)
	payload := p.activity(activity)
	if activity.LocationID != "" {
		if location, ok := h.cachedLocation(r.Context(), activity.LocationID); ok {
			payload.Location = p.locationRef(location)
		}
	}
	writeCachedJSON(w, r, archiveCacheControl, payload)
}

func (h *PublicHandlers) cachedLocation(ctx context.Context, id string) (domain.Location, bool) {
	locations, err := h.archive.Locations(ctx)
	if err != nil {
		return domain.Location{}, false
	}
	for _, location := range locations {
		if location.ID == id {
			return location, true
		}
	}
	return domain.Location{}, false
}

// refParam reads a path reference. chi matches on the raw path when one is set, so the value is
// unescaped once.
func refParam(w http.ResponseWriter, r *http.Request, name, resource string) (string, bool) {
	raw := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_"+resource+"_ref", resource+" reference is required", http.StatusBadRequest))
		return "", false
	}
	return raw, true
}
