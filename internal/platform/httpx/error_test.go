package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/memorial-heritage/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "trace-1"})

	rr := httptest.NewRecorder()
	err := NewError("martyr_not_found", "martyr\nnot found", http.StatusNotFound).
		WithDetails(map[string]any{"ref": "ali-hassan", "status": 999})
	WriteError(ctx, rr, err)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %s", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "martyr_not_found" || body["message"] != "martyr not found" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["status"] != float64(http.StatusNotFound) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
	if body["request_id"] != "req-1" || body["trace_id"] != "trace-1" || body["ref"] != "ali-hassan" {
		t.Fatalf("unexpected metadata %v", body)
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	if got := NewError("x", "y", 0).Status; got != http.StatusInternalServerError {
		t.Fatalf("expected 500 default, got %d", got)
	}
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, Error{Code: "boom"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
