// Package memory is an in-process storage backend. Transactions stage a
// private copy of each ledger they touch and swap it in on Commit, so
// readers never see a half-applied recompute.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// ErrForeignTx is returned when a transaction from another backend is passed in.
var ErrForeignTx = errors.New("memory: transaction does not belong to this store")

type ledger struct {
	entries map[string]*domain.Entry
	seq     int64
}

func (l *ledger) clone() *ledger {
	c := &ledger{
		entries: make(map[string]*domain.Entry, len(l.entries)),
		seq:     l.seq,
	}
	for id, e := range l.entries {
		c.entries[id] = e.Clone()
	}
	return c
}

func (l *ledger) list() []*domain.Entry {
	out := make([]*domain.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.Clone())
	}
	return out
}

// Store implements usecase.EntryRepository and usecase.TransactionManager.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]*ledger

	writersMu sync.Mutex
	writers   map[string]*sync.Mutex
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		ledgers: make(map[string]*ledger),
		writers: make(map[string]*sync.Mutex),
	}
}

// Begin starts a new transaction.
func (s *Store) Begin(_ context.Context) (usecase.Transaction, error) {
	return &Tx{store: s, staged: make(map[string]*ledger)}, nil
}

// FindAll returns every entry of the ledger.
func (s *Store) FindAll(_ context.Context, tx usecase.Transaction, ledgerID string) ([]*domain.Entry, error) {
	l, err := s.view(tx, ledgerID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return []*domain.Entry{}, nil
	}
	return l.list(), nil
}

// FindLatestByDate returns the last entry in ledger order.
func (s *Store) FindLatestByDate(ctx context.Context, tx usecase.Transaction, ledgerID string) (*domain.Entry, error) {
	entries, err := s.FindAll(ctx, tx, ledgerID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	domain.SortLedgerOrder(entries)

	return entries[len(entries)-1], nil
}

// Insert stages a new entry.
func (s *Store) Insert(_ context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	l, err := s.stage(tx, entry.LedgerID)
	if err != nil {
		return err
	}

	l.entries[entry.ID] = entry.Clone()
	if entry.Seq > l.seq {
		l.seq = entry.Seq
	}

	return nil
}

// DeleteByID stages the removal of an entry.
func (s *Store) DeleteByID(_ context.Context, tx usecase.Transaction, ledgerID, id string) (bool, error) {
	l, err := s.stage(tx, ledgerID)
	if err != nil {
		return false, err
	}

	if _, ok := l.entries[id]; !ok {
		return false, nil
	}
	delete(l.entries, id)

	return true, nil
}

// ReplaceAll stages entries as the full content of the ledger.
func (s *Store) ReplaceAll(_ context.Context, tx usecase.Transaction, ledgerID string, entries []*domain.Entry) error {
	l, err := s.stage(tx, ledgerID)
	if err != nil {
		return err
	}

	l.entries = make(map[string]*domain.Entry, len(entries))
	for _, e := range entries {
		l.entries[e.ID] = e.Clone()
		if e.Seq > l.seq {
			l.seq = e.Seq
		}
	}

	return nil
}

// NextSequence allocates the next insertion sequence of the ledger.
func (s *Store) NextSequence(_ context.Context, tx usecase.Transaction, ledgerID string) (int64, error) {
	l, err := s.stage(tx, ledgerID)
	if err != nil {
		return 0, err
	}

	l.seq++

	return l.seq, nil
}

// LockLedger holds the ledger's writer lock until tx ends.
func (s *Store) LockLedger(_ context.Context, tx usecase.Transaction, ledgerID string) error {
	t, err := s.txFrom(tx)
	if err != nil {
		return err
	}
	if _, held := t.locked[ledgerID]; held {
		return nil
	}

	s.writersMu.Lock()
	mu, ok := s.writers[ledgerID]
	if !ok {
		mu = &sync.Mutex{}
		s.writers[ledgerID] = mu
	}
	s.writersMu.Unlock()

	mu.Lock()
	if t.locked == nil {
		t.locked = make(map[string]*sync.Mutex)
	}
	t.locked[ledgerID] = mu

	return nil
}

// ListLedgers returns the IDs of ledgers holding at least one entry.
func (s *Store) ListLedgers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ledgers))
	for id, l := range s.ledgers {
		if len(l.entries) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return ids, nil
}

// view returns the ledger as tx sees it. A nil tx reads committed state.
func (s *Store) view(tx usecase.Transaction, ledgerID string) (*ledger, error) {
	if tx != nil {
		t, err := s.txFrom(tx)
		if err != nil {
			return nil, err
		}
		if l, ok := t.staged[ledgerID]; ok {
			return l, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[ledgerID]
	if !ok {
		return nil, nil
	}
	return l.clone(), nil
}

func (s *Store) stage(tx usecase.Transaction, ledgerID string) (*ledger, error) {
	t, err := s.txFrom(tx)
	if err != nil {
		return nil, err
	}

	if l, ok := t.staged[ledgerID]; ok {
		return l, nil
	}

	s.mu.RLock()
	committed, ok := s.ledgers[ledgerID]
	var l *ledger
	if ok {
		l = committed.clone()
	} else {
		l = &ledger{entries: make(map[string]*domain.Entry)}
	}
	s.mu.RUnlock()

	t.staged[ledgerID] = l

	return l, nil
}

func (s *Store) txFrom(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, ErrForeignTx
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

// Tx is a memory transaction.
type Tx struct {
	store  *Store
	staged map[string]*ledger
	locked map[string]*sync.Mutex
	done   bool
}

// Commit publishes every staged ledger at once.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}

	t.store.mu.Lock()
	for id, l := range t.staged {
		t.store.ledgers[id] = l
	}
	t.store.mu.Unlock()

	t.finish()

	return nil
}

// Rollback discards staged changes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}

	t.finish()

	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.staged = nil
	for _, mu := range t.locked {
		mu.Unlock()
	}
	t.locked = nil
}
