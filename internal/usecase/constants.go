package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a storage transaction
	// This prevents a stuck recompute from holding the ledger lock forever
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSummaryCacheTTL is how long an unfiltered ledger summary is cached
	DefaultSummaryCacheTTL = 5 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	summaryCachePrefix = "summary:"
)
