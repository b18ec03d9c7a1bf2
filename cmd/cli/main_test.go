package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpAdapter "github.com/iho/cashbook/internal/adapter/http"
	"github.com/iho/cashbook/internal/adapter/http/handler"
	"github.com/iho/cashbook/internal/adapter/repository/memory"
	"github.com/iho/cashbook/internal/usecase"
)

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("e%d", g.n.Add(1))
}

// keyStore mimics the SETNX semantics of the redis idempotency store.
type keyStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (s *keyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return true, v, nil
	}
	if response == nil {
		response = []byte("processing")
	}
	s.values[key] = response
	return false, nil, nil
}

func (s *keyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = response
	return nil
}

func (s *keyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func newRouter(keys usecase.IdempotencyStore) http.Handler {
	store := memory.NewStore()
	uc := usecase.NewLedgerUseCase(store, store, &seqIDs{})
	return httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EntryHandler:       handler.NewEntryHandler(uc),
		LedgerHandler:      handler.NewLedgerHandler(uc),
		ExpenseHandler:     handler.NewExpenseHandler(uc, "default", "$"),
		TransactionHandler: handler.NewTransactionHandler(uc, "default"),
		HealthHandler:      handler.NewHealthHandler(nil),
		IdempotencyStore:   keys,
		IdempotencyTTL:     time.Minute,
		Logger:             zerolog.Nop(),
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(newRouter(nil))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}))

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestEntriesWorkflow(t *testing.T) {
	srv := newTestServer(t)
	base := []string{"--url", srv.URL, "--ledger", "household"}

	out, err := execute(t, append(base, "entries", "add", "--date", "2024-01-01", "--label", "Sale", "--kind", "income", "--amount", "500")...)
	require.NoError(t, err)
	assert.Equal(t, "Added e1, balance 500.00\n", out)

	_, err = execute(t, append(base, "entries", "add", "--date", "2024-01-02", "--label", "Supplies", "--kind", "expense", "--amount", "200")...)
	require.NoError(t, err)

	out, err = execute(t, append(base, "entries", "list")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "Supplies")
	assert.Contains(t, lines[2], "300.00")

	out, err = execute(t, append(base, "entries", "list", "--kind", "expense", "--json")...)
	require.NoError(t, err)
	var listed []entry
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "e2", listed[0].ID)

	out, err = execute(t, append(base, "summary")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance  300.00")

	out, err = execute(t, append(base, "entries", "remove", "e1")...)
	require.NoError(t, err)
	assert.Equal(t, "Removed e1\n", out)

	out, err = execute(t, append(base, "ledger", "consistency")...)
	require.NoError(t, err)
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "Final balance: -200.00")

	out, err = execute(t, append(base, "ledger", "recompute")...)
	require.NoError(t, err)
	assert.Equal(t, "Recomputed 1 entries, 0 changed\n", out)

	out, err = execute(t, "--url", srv.URL, "ledger", "list")
	require.NoError(t, err)
	assert.Equal(t, "household\n", out)
}

func TestClientErrors(t *testing.T) {
	srv := newTestServer(t)

	_, err := execute(t, "--url", srv.URL, "entries", "add", "--label", "x", "--kind", "bogus", "--amount", "1")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = execute(t, "--url", srv.URL, "entries", "remove", "missing")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "not found")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true,"data":["default"]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "ledger", "list")
	require.NoError(t, err)
	assert.Equal(t, "default\n", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAddRetriedAfterTimeoutCreatesOneEntry(t *testing.T) {
	router := newRouter(&keyStore{values: map[string][]byte{}})

	var (
		mu    sync.Mutex
		keys  []string
		posts atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		if r.Method == http.MethodPost {
			mu.Lock()
			keys = append(keys, r.Header.Get("Idempotency-Key"))
			mu.Unlock()

			// The entry is committed; the first answer arrives too late.
			if posts.Add(1) == 1 {
				time.Sleep(500 * time.Millisecond)
			}
		}

		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		w.Write(rec.Body.Bytes())
	}))
	defer srv.Close()

	base := []string{"--url", srv.URL, "--timeout", "200ms"}

	out, err := execute(t, append(base, "entries", "add", "--date", "2024-01-01", "--label", "Sale", "--kind", "income", "--amount", "500")...)
	require.NoError(t, err)
	assert.Equal(t, "Added e1, balance 500.00\n", out)

	out, err = execute(t, append(base, "entries", "list", "--json")...)
	require.NoError(t, err)
	var listed []entry
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Len(t, listed, 1)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(keys), 2)
	_, err = ulid.Parse(keys[0])
	require.NoError(t, err)
	for _, k := range keys[1:] {
		assert.Equal(t, keys[0], k)
	}
}

func TestClientRetriesPendingMutation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"success":false,"data":null,"message":"a request with this idempotency key is in progress"}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "entries", "remove", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Removed e1\n", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConsistencyFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"ledger_id":"default","consistent":false,"checked":2,"mismatches":1,
			"first_mismatch":{"entry_id":"e2","stored":"1.00","expected":"2.00"},"final_balance":"2.00"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--url", srv.URL, "ledger", "consistency")
	require.ErrorIs(t, err, errInconsistent)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "First mismatch: e2 stored 1.00 expected 2.00")
}
