package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/adapter/http/handler"
	"github.com/iho/cashbook/internal/adapter/http/middleware"
	"github.com/iho/cashbook/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	EntryHandler       *handler.EntryHandler
	LedgerHandler      *handler.LedgerHandler
	ExpenseHandler     *handler.ExpenseHandler
	TransactionHandler *handler.TransactionHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	RateLimiter        *middleware.RateLimiter
	Metrics            middleware.RequestRecorder
	Logger             zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	r.Group(func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/api/v1/ledgers", func(r chi.Router) {
			r.Get("/", cfg.LedgerHandler.List)
			r.Route("/{ledgerID}", func(r chi.Router) {
				r.Get("/entries", cfg.EntryHandler.List)
				r.Post("/entries", cfg.EntryHandler.Create)
				r.Delete("/entries/{id}", cfg.EntryHandler.Delete)
				r.Get("/summary", cfg.EntryHandler.Summary)
				r.Get("/consistency", cfg.LedgerHandler.Consistency)
				r.Post("/recompute", cfg.LedgerHandler.Recompute)
			})
		})

		// Single-ledger routes kept for existing clients
		r.Route("/api/expenses", func(r chi.Router) {
			r.Get("/", cfg.ExpenseHandler.List)
			r.Post("/", cfg.ExpenseHandler.Create)
			r.Delete("/{id}", cfg.ExpenseHandler.Delete)
		})

		r.Route("/api/transactions", func(r chi.Router) {
			r.Get("/", cfg.TransactionHandler.List)
			r.Post("/", cfg.TransactionHandler.Create)
			r.Get("/summary", cfg.TransactionHandler.Summary)
			r.Get("/search", cfg.TransactionHandler.Search)
			r.Delete("/{id}", cfg.TransactionHandler.Delete)
		})
	})

	return r
}
