package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/infrastructure/postgres/generated"
	"github.com/iho/cashbook/internal/usecase"
)

var (
	// ErrForeignTx is returned when a transaction from another backend is passed in.
	ErrForeignTx = errors.New("postgres: transaction does not belong to this backend")
	// ErrTxRequired is returned by write operations called without a transaction.
	ErrTxRequired = errors.New("postgres: operation requires a transaction")
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// FindAll returns every entry of the ledger in ledger order.
func (r *EntryRepository) FindAll(ctx context.Context, tx usecase.Transaction, ledgerID string) ([]*domain.Entry, error) {
	queries, err := r.reader(tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.ListEntriesByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}

	return entries, nil
}

// FindLatestByDate returns the last entry in ledger order, or nil.
func (r *EntryRepository) FindLatestByDate(ctx context.Context, tx usecase.Transaction, ledgerID string) (*domain.Entry, error) {
	queries, err := r.reader(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetLatestEntryByLedger(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return rowToEntry(row), nil
}

// Insert creates a new entry.
func (r *EntryRepository) Insert(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	queries, err := r.writer(tx)
	if err != nil {
		return err
	}

	if err := queries.EnsureLedger(ctx, generated.EnsureLedgerParams{
		ID:      entry.LedgerID,
		LastSeq: entry.Seq,
	}); err != nil {
		return err
	}

	p := entryToCopyParams(entry)

	return queries.CreateEntry(ctx, generated.CreateEntryParams(p))
}

// DeleteByID deletes an entry of the ledger.
func (r *EntryRepository) DeleteByID(ctx context.Context, tx usecase.Transaction, ledgerID, id string) (bool, error) {
	queries, err := r.writer(tx)
	if err != nil {
		return false, err
	}

	n, err := queries.DeleteEntry(ctx, generated.DeleteEntryParams{
		LedgerID: ledgerID,
		ID:       id,
	})
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// ReplaceAll deletes the ledger's rows and bulk-loads entries with COPY.
func (r *EntryRepository) ReplaceAll(ctx context.Context, tx usecase.Transaction, ledgerID string, entries []*domain.Entry) error {
	queries, err := r.writer(tx)
	if err != nil {
		return err
	}

	if err := queries.DeleteEntriesByLedger(ctx, ledgerID); err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	var maxSeq int64
	params := make([]generated.CopyEntriesParams, 0, len(entries))
	for _, e := range entries {
		params = append(params, entryToCopyParams(e))
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	if err := queries.EnsureLedger(ctx, generated.EnsureLedgerParams{
		ID:      ledgerID,
		LastSeq: maxSeq,
	}); err != nil {
		return err
	}

	_, err = queries.CopyEntries(ctx, params)

	return err
}

// NextSequence allocates the next insertion sequence of the ledger.
func (r *EntryRepository) NextSequence(ctx context.Context, tx usecase.Transaction, ledgerID string) (int64, error) {
	queries, err := r.writer(tx)
	if err != nil {
		return 0, err
	}

	return queries.NextLedgerSequence(ctx, ledgerID)
}

// LockLedger takes a transaction-scoped advisory lock on the ledger.
func (r *EntryRepository) LockLedger(ctx context.Context, tx usecase.Transaction, ledgerID string) error {
	queries, err := r.writer(tx)
	if err != nil {
		return err
	}

	return queries.LockLedger(ctx, ledgerID)
}

// ListLedgers returns the IDs of ledgers holding entries.
func (r *EntryRepository) ListLedgers(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListLedgerIDs(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

func (r *EntryRepository) reader(tx usecase.Transaction) (*generated.Queries, error) {
	if tx == nil {
		return r.queries, nil
	}
	return r.writer(tx)
}

func (r *EntryRepository) writer(tx usecase.Transaction) (*generated.Queries, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}

	t, ok := tx.(*Tx)
	if !ok {
		return nil, ErrForeignTx
	}

	return r.queries.WithTx(t.PgxTx()), nil
}
