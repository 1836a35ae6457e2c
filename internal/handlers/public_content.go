package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/memorial-heritage/api/internal/platform/httpx"
	"github.com/memorial-heritage/api/internal/platform/pagination"
	"github.com/memorial-heritage/api/internal/services"
)

type newsListResponse struct {
	News          []newsSummaryPayload `json:"news"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

func (h *PublicHandlers) requireContent(w http.ResponseWriter, r *http.Request) bool {
	if h.content == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *PublicHandlers) listNews(w http.ResponseWriter, r *http.Request) {
	if !h.requireContent(w, r) {
		return
	}
	params, err := pagination.FromRequest(r, h.pageOpts)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "news")
		return
	}

	page, err := h.content.ListNews(r.Context(), services.NewsListRequest{
		PageSize: params.PageSize,
		After:    params.Cursor,
	})
	if err != nil {
		writeArchiveError(r.Context(), w, err, "news")
		return
	}

	p := h.present(r)
	out := make([]newsSummaryPayload, 0, len(page.Items))
	for _, article := range page.Items {
		out = append(out, p.newsSummary(article))
	}
	writeCachedJSON(w, r, contentCacheControl, newsListResponse{
		News:          out,
		NextPageToken: page.NextPageToken,
	})
}

func (h *PublicHandlers) getNews(w http.ResponseWriter, r *http.Request) {
	if !h.requireContent(w, r) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "newsId"))
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_news_id", "news id is required", http.StatusBadRequest))
		return
	}

	article, err := h.content.GetNews(r.Context(), id)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "news")
		return
	}
	writeCachedJSON(w, r, contentCacheControl, h.present(r).newsDetail(article))
}

func (h *PublicHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	if !h.requireContent(w, r) {
		return
	}
	pageSlug, ok := refParam(w, r, "slug", "page")
	if !ok {
		return
	}

	page, err := h.content.GetPage(r.Context(), pageSlug)
	if err != nil {
		writeArchiveError(r.Context(), w, err, "page")
		return
	}
	writeCachedJSON(w, r, contentCacheControl, h.present(r).page(page))
}
