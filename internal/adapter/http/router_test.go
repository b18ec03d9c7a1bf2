package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashbook/internal/adapter/http/handler"
	apimiddleware "github.com/iho/cashbook/internal/adapter/http/middleware"
	"github.com/iho/cashbook/internal/adapter/repository/memory"
	"github.com/iho/cashbook/internal/usecase"
)

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("id%d", g.n.Add(1))
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	store := memory.NewStore()
	uc := usecase.NewLedgerUseCase(store, store, &seqIDs{})

	cfg := RouterConfig{
		EntryHandler:       handler.NewEntryHandler(uc),
		LedgerHandler:      handler.NewLedgerHandler(uc),
		ExpenseHandler:     handler.NewExpenseHandler(uc, "default", "$"),
		TransactionHandler: handler.NewTransactionHandler(uc, "default"),
		HealthHandler:      handler.NewHealthHandler(nil),
		Logger:             zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotentExpenseIsAddedOnce(t *testing.T) {
	store := &stubIdempotencyStore{values: map[string][]byte{}}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
		cfg.IdempotencyTTL = time.Minute
	}))

	post := func() *httptest.ResponseRecorder {
		body := `{"date":"2024-01-01","item":"Sale","transactionType":"income","amount":500}`
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := post()
	second := post()

	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(apimiddleware.IdempotencyReplayHeader))
	assert.Equal(t, 2, store.checks["POST:/api/expenses:key-123"])

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	var listed struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Data, 1)
}

func TestNewRouter_LedgerRoutesServeEngine(t *testing.T) {
	router := NewRouter(newRouterConfig())

	body := `{"occurred_on":"2024-01-01","label":"Sale","kind":"income","amount":"500"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledgers/household/entries", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ledgers/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "household")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /api/v1/ledgers/",
		"GET /api/v1/ledgers/{ledgerID}/entries",
		"POST /api/v1/ledgers/{ledgerID}/entries",
		"DELETE /api/v1/ledgers/{ledgerID}/entries/{id}",
		"GET /api/v1/ledgers/{ledgerID}/summary",
		"GET /api/v1/ledgers/{ledgerID}/consistency",
		"POST /api/v1/ledgers/{ledgerID}/recompute",
		"GET /api/expenses/",
		"POST /api/expenses/",
		"DELETE /api/expenses/{id}",
		"GET /api/transactions/",
		"POST /api/transactions/",
		"DELETE /api/transactions/{id}",
		"GET /api/transactions/summary",
		"GET /api/transactions/search",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

type stubIdempotencyStore struct {
	values map[string][]byte
	checks map[string]int
}

func (s *stubIdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	if s.checks == nil {
		s.checks = map[string]int{}
	}
	s.checks[key]++
	if v, ok := s.values[key]; ok {
		return true, v, nil
	}
	if response == nil {
		response = []byte("processing")
	}
	s.values[key] = response
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.values[key] = response
	return nil
}

func (s *stubIdempotencyStore) Release(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}
