package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRecoveryAndLoggingCapturePanics(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := NewLoggingMiddleware(logger).Wrap(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"success":false`) {
		t.Fatalf("expected failure envelope, got %s", rr.Body.String())
	}

	logs := buf.String()
	if !strings.Contains(logs, "panic recovered") || !strings.Contains(logs, "boom") {
		t.Fatalf("expected panic to be logged, got %s", logs)
	}
	if !strings.Contains(logs, `"status":500`) || !strings.Contains(logs, "request completed") {
		t.Fatalf("expected access log line, got %s", logs)
	}
}

func TestLoggingMiddlewareAttachesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := NewLoggingMiddleware(logger).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.Contains(buf.String(), "inside handler") {
		t.Fatalf("expected handler log through context logger, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"status":204`) {
		t.Fatalf("expected status in access log, got %s", buf.String())
	}
}
