package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/memorial-heritage/api/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", sc.TraceID())
	}
	if sc.SpanID().String() != "0000000000000001" || !sc.IsSampled() || !sc.IsRemote() {
		t.Fatalf("unexpected span context %+v", sc)
	}

	for _, bad := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/0;o=1"} {
		if _, ok := parseCloudTraceContext(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestTraceMiddlewarePropagatesCallerTrace(t *testing.T) {
	var info requestctx.TraceInfo
	handler := TraceMiddleware("archive-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/martyrs", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/42;o=1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if info.TraceID != "105445aa7843bc8bf206b12000100000" || info.ProjectID != "archive-prod" {
		t.Fatalf("unexpected trace info %+v", info)
	}
	if got := rr.Header().Get(cloudTraceHeader); !strings.HasPrefix(got, info.TraceID+"/") {
		t.Fatalf("expected trace header echoed, got %q", got)
	}
	if traceResource(info) != "projects/archive-prod/traces/105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace resource %s", traceResource(info))
	}
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	chain := InjectLoggerMiddleware(logger)(RequestLoggerMiddleware()(RecoveryMiddleware(logger)(panicking)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/legends", nil)
	req = req.WithContext(requestctx.WithLocale(req.Context(), "ar"))
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected one completion log, got %d", len(completed))
	}
	fields := completed[0].ContextMap()
	if fields["status"] != int64(http.StatusInternalServerError) || fields["locale"] != "ar" {
		t.Fatalf("unexpected completion fields %v", fields)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := sanitizeString("GET\r\n/x\x00", 0); got != "GET/x" {
		t.Fatalf("unexpected sanitised value %q", got)
	}
	if got := sanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("expected truncation, got %q", got)
	}
	if SanitizeRoute("") != "/" {
		t.Fatalf("expected empty route to become /")
	}
}
