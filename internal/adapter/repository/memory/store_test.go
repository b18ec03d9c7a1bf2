package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iho/cashbook/internal/adapter/repository/repotest"
	"github.com/iho/cashbook/internal/domain"
)

func TestStoreSuite(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Backend {
		s := NewStore()
		return repotest.Backend{Repo: s, TxManager: s}
	})
}

func TestStoreUncommittedWritesInvisible(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	if err := s.Insert(ctx, tx, repotest.NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	entries, err := s.FindAll(ctx, nil, "default")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected uncommitted insert to be invisible, got %d entries", len(entries))
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	entries, _ = s.FindAll(ctx, nil, "default")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after commit, got %d", len(entries))
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	e := repotest.NewEntry("default", "e1", 1, domain.KindIncome, "1.00", 1)
	_ = s.Insert(ctx, tx, e)
	_ = tx.Commit(ctx)

	e.Label = "mutated after insert"

	entries, _ := s.FindAll(ctx, nil, "default")
	entries[0].Label = "mutated after read"

	again, _ := s.FindAll(ctx, nil, "default")
	if again[0].Label != "entry e1" {
		t.Fatalf("expected stored entry to be isolated from callers, got %q", again[0].Label)
	}
}

func TestTxDone(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if err := tx.Commit(ctx); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone on second commit, got %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit should be a no-op, got %v", err)
	}
	if _, err := s.NextSequence(ctx, tx, "default"); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone, got %v", err)
	}
}

func TestForeignTx(t *testing.T) {
	a, b := NewStore(), NewStore()
	ctx := context.Background()

	tx, _ := a.Begin(ctx)
	defer tx.Rollback(ctx)

	if _, err := b.FindAll(ctx, tx, "default"); !errors.Is(err, ErrForeignTx) {
		t.Fatalf("expected ErrForeignTx, got %v", err)
	}
}

func TestLockLedgerBlocksUntilTxEnds(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, _ := s.Begin(ctx)
	if err := s.LockLedger(ctx, first, "default"); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, _ := s.Begin(ctx)
		_ = s.LockLedger(ctx, second, "default")
		close(acquired)
		_ = second.Rollback(ctx)
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired the ledger lock while the first held it")
	case <-time.After(50 * time.Millisecond):
	}

	_ = first.Rollback(ctx)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("ledger lock was not released on rollback")
	}
}
