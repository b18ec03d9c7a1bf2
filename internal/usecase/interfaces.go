package usecase

import (
	"context"
	"time"

	"github.com/iho/cashbook/internal/domain"
)

// EntryRepository defines data access for ledger entries.
//
// Read methods accept a nil Transaction to read committed state. Write
// methods require the transaction the mutation runs in; nothing they do is
// visible to other readers before Commit.
type EntryRepository interface {
	// FindAll returns every entry of the ledger, in no particular order.
	FindAll(ctx context.Context, tx Transaction, ledgerID string) ([]*domain.Entry, error)
	// FindLatestByDate returns the last entry in ledger order, or nil for an
	// empty ledger.
	FindLatestByDate(ctx context.Context, tx Transaction, ledgerID string) (*domain.Entry, error)
	Insert(ctx context.Context, tx Transaction, entry *domain.Entry) error
	// DeleteByID reports whether an entry was deleted.
	DeleteByID(ctx context.Context, tx Transaction, ledgerID, id string) (bool, error)
	// ReplaceAll swaps the stored entries of the ledger for entries.
	ReplaceAll(ctx context.Context, tx Transaction, ledgerID string, entries []*domain.Entry) error
	// NextSequence allocates the insertion sequence of a new entry.
	NextSequence(ctx context.Context, tx Transaction, ledgerID string) (int64, error)
	// LockLedger serializes writers of the ledger for the rest of tx.
	LockLedger(ctx context.Context, tx Transaction, ledgerID string) error
	ListLedgers(ctx context.Context) ([]string, error)
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation while it fails with a transient storage error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// EventPublisher delivers ledger events to external systems.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
}

// MetricsRecorder receives ledger engine measurements.
type MetricsRecorder interface {
	EntryAdded(kind domain.Kind)
	EntryRemoved()
	RecomputeCompleted(entries int, duration time.Duration)
	EventPublishFailed(eventType string)
	SummaryCacheLookup(hit bool)
}
