// Package repotest holds the behavior every usecase.EntryRepository backend
// must share. Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// Backend is a freshly initialized, empty storage backend.
type Backend struct {
	Repo      usecase.EntryRepository
	TxManager usecase.TransactionManager
}

// Factory creates an empty Backend for one subtest.
type Factory func(t *testing.T) Backend

// Run executes the shared repository suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	t.Run("empty ledger", func(t *testing.T) { testEmptyLedger(t, newBackend(t)) })
	t.Run("insert and find", func(t *testing.T) { testInsertAndFind(t, newBackend(t)) })
	t.Run("latest by date", func(t *testing.T) { testLatestByDate(t, newBackend(t)) })
	t.Run("sequence is monotonic", func(t *testing.T) { testNextSequence(t, newBackend(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newBackend(t)) })
	t.Run("replace all", func(t *testing.T) { testReplaceAll(t, newBackend(t)) })
	t.Run("rollback discards", func(t *testing.T) { testRollback(t, newBackend(t)) })
	t.Run("transaction sees its own writes", func(t *testing.T) { testOwnWrites(t, newBackend(t)) })
	t.Run("ledgers are independent", func(t *testing.T) { testLedgers(t, newBackend(t)) })
}

// Day returns UTC midnight of the given date in January 2025.
func Day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

// NewEntry builds a valid entry for tests.
func NewEntry(ledgerID, id string, day int, kind domain.Kind, amount string, seq int64) *domain.Entry {
	return &domain.Entry{
		ID:         id,
		LedgerID:   ledgerID,
		OccurredOn: Day(day),
		Label:      "entry " + id,
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		Seq:        seq,
		CreatedAt:  time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC),
	}
}

func commit(t *testing.T, b Backend, fn func(ctx context.Context, tx usecase.Transaction)) {
	t.Helper()

	ctx := context.Background()
	tx, err := b.TxManager.Begin(ctx)
	require.NoError(t, err)

	fn(ctx, tx)

	require.NoError(t, tx.Commit(ctx))
}

func insert(t *testing.T, b Backend, entries ...*domain.Entry) {
	t.Helper()

	commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
		for _, e := range entries {
			require.NoError(t, b.Repo.Insert(ctx, tx, e))
		}
	})
}

func byID(entries []*domain.Entry) map[string]*domain.Entry {
	out := make(map[string]*domain.Entry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out
}

func testEmptyLedger(t *testing.T, b Backend) {
	ctx := context.Background()

	entries, err := b.Repo.FindAll(ctx, nil, "default")
	require.NoError(t, err)
	assert.Empty(t, entries)

	latest, err := b.Repo.FindLatestByDate(ctx, nil, "default")
	require.NoError(t, err)
	assert.Nil(t, latest)

	ledgers, err := b.Repo.ListLedgers(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledgers)
}

func testInsertAndFind(t *testing.T, b Backend) {
	e := NewEntry("default", "e1", 1, domain.KindIncome, "500.00", 1)
	e.RunningBalance = decimal.RequireFromString("500.00")
	insert(t, b, e)

	entries, err := b.Repo.FindAll(context.Background(), nil, "default")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, "default", got.LedgerID)
	assert.Equal(t, "entry e1", got.Label)
	assert.Equal(t, domain.KindIncome, got.Kind)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("500")), "amount %s", got.Amount)
	assert.True(t, got.RunningBalance.Equal(decimal.RequireFromString("500")), "balance %s", got.RunningBalance)
	assert.True(t, got.OccurredOn.Equal(Day(1)), "date %s", got.OccurredOn)
	assert.Equal(t, int64(1), got.Seq)
	assert.True(t, got.CreatedAt.Equal(e.CreatedAt), "created_at %s", got.CreatedAt)
}

func testLatestByDate(t *testing.T, b Backend) {
	insert(t, b,
		NewEntry("default", "late", 5, domain.KindIncome, "1.00", 1),
		NewEntry("default", "early", 2, domain.KindIncome, "1.00", 2),
		NewEntry("default", "late-second", 5, domain.KindExpense, "1.00", 3),
	)

	latest, err := b.Repo.FindLatestByDate(context.Background(), nil, "default")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "late-second", latest.ID, "ties on date resolve by insertion sequence")
}

func testNextSequence(t *testing.T, b Backend) {
	var seqs []int64
	for i := 0; i < 3; i++ {
		commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
			seq, err := b.Repo.NextSequence(ctx, tx, "default")
			require.NoError(t, err)
			seqs = append(seqs, seq)

			require.NoError(t, b.Repo.Insert(ctx, tx, NewEntry("default", fmt.Sprintf("e%d", seq), 1, domain.KindIncome, "1.00", seq)))
		})
	}

	require.Len(t, seqs, 3)
	assert.Less(t, seqs[0], seqs[1])
	assert.Less(t, seqs[1], seqs[2])

	// Sequences keep growing after the ledger is emptied.
	commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
		require.NoError(t, b.Repo.ReplaceAll(ctx, tx, "default", nil))
	})
	commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
		seq, err := b.Repo.NextSequence(ctx, tx, "default")
		require.NoError(t, err)
		assert.Greater(t, seq, seqs[2])
	})
}

func testDelete(t *testing.T, b Backend) {
	insert(t, b,
		NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1),
		NewEntry("default", "e2", 2, domain.KindIncome, "2.00", 2),
	)

	commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
		deleted, err := b.Repo.DeleteByID(ctx, tx, "default", "e1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = b.Repo.DeleteByID(ctx, tx, "default", "missing")
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = b.Repo.DeleteByID(ctx, tx, "other", "e2")
		require.NoError(t, err)
		assert.False(t, deleted, "ids are scoped to their ledger")
	})

	entries, err := b.Repo.FindAll(context.Background(), nil, "default")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e2", entries[0].ID)
}

func testReplaceAll(t *testing.T, b Backend) {
	insert(t, b,
		NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1),
		NewEntry("default", "e2", 2, domain.KindIncome, "2.00", 2),
	)

	replacement := []*domain.Entry{
		NewEntry("default", "e2", 2, domain.KindIncome, "2.00", 2),
		NewEntry("default", "e3", 3, domain.KindExpense, "0.50", 3),
	}
	domain.Recompute(replacement)

	commit(t, b, func(ctx context.Context, tx usecase.Transaction) {
		require.NoError(t, b.Repo.ReplaceAll(ctx, tx, "default", replacement))
	})

	entries, err := b.Repo.FindAll(context.Background(), nil, "default")
	require.NoError(t, err)
	got := byID(entries)
	require.Len(t, got, 2)
	assert.True(t, got["e2"].RunningBalance.Equal(decimal.RequireFromString("2.00")))
	assert.True(t, got["e3"].RunningBalance.Equal(decimal.RequireFromString("1.50")))
}

func testRollback(t *testing.T, b Backend) {
	ctx := context.Background()
	tx, err := b.TxManager.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Repo.Insert(ctx, tx, NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1)))
	require.NoError(t, tx.Rollback(ctx))

	entries, err := b.Repo.FindAll(ctx, nil, "default")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testOwnWrites(t *testing.T, b Backend) {
	ctx := context.Background()
	insert(t, b, NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1))

	tx, err := b.TxManager.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, b.Repo.Insert(ctx, tx, NewEntry("default", "e2", 2, domain.KindIncome, "1.00", 2)))

	inTx, err := b.Repo.FindAll(ctx, tx, "default")
	require.NoError(t, err)
	assert.Len(t, inTx, 2, "a transaction sees its own writes")

	require.NoError(t, tx.Commit(ctx))

	committed, err := b.Repo.FindAll(ctx, nil, "default")
	require.NoError(t, err)
	assert.Len(t, committed, 2)
}

func testLedgers(t *testing.T, b Backend) {
	insert(t, b,
		NewEntry("household", "h1", 1, domain.KindIncome, "1.00", 1),
		NewEntry("business", "b1", 1, domain.KindIncome, "1.00", 1),
	)

	ledgers, err := b.Repo.ListLedgers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"business", "household"}, ledgers)

	entries, err := b.Repo.FindAll(context.Background(), nil, "household")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "h1", entries[0].ID)
}
