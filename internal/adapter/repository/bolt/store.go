// Package bolt is an embedded key/value storage backend on bbolt. Each
// ledger owns a bucket holding its entries keyed by insertion sequence and
// an id index. bbolt admits one writable transaction at a time, which also
// serializes writers of every ledger.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	bbolt "go.etcd.io/bbolt"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

var (
	// ErrForeignTx is returned when a transaction from another backend is passed in.
	ErrForeignTx = errors.New("bolt: transaction does not belong to this store")
	// ErrTxRequired is returned by write operations called without a transaction.
	ErrTxRequired = errors.New("bolt: operation requires a transaction")
)

var (
	ledgersBucketName = []byte("ledgers")
	entriesBucketName = []byte("entries")
	idsBucketName     = []byte("ids")
)

type record struct {
	ID             string          `json:"id"`
	LedgerID       string          `json:"ledger_id"`
	Seq            int64           `json:"seq"`
	OccurredOn     string          `json:"occurred_on"`
	Label          string          `json:"label"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toRecord(e *domain.Entry) record {
	return record{
		ID:             e.ID,
		LedgerID:       e.LedgerID,
		Seq:            e.Seq,
		OccurredOn:     domain.FormatDate(e.OccurredOn),
		Label:          e.Label,
		Kind:           string(e.Kind),
		Amount:         e.Amount,
		RunningBalance: e.RunningBalance,
		CreatedAt:      e.CreatedAt.UTC(),
	}
}

func (r record) entry() (*domain.Entry, error) {
	occurredOn, err := time.Parse(domain.DateLayout, r.OccurredOn)
	if err != nil {
		return nil, fmt.Errorf("entry %s: occurred_on: %w", r.ID, err)
	}

	return &domain.Entry{
		ID:             r.ID,
		LedgerID:       r.LedgerID,
		Seq:            r.Seq,
		OccurredOn:     occurredOn,
		Label:          r.Label,
		Kind:           domain.Kind(r.Kind),
		Amount:         r.Amount,
		RunningBalance: r.RunningBalance,
		CreatedAt:      r.CreatedAt,
	}, nil
}

// Store implements usecase.EntryRepository and usecase.TransactionManager.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	return NewStore(db)
}

// NewStore prepares the root bucket of db.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ledgersBucketName)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a writable transaction. It blocks while another one is open.
func (s *Store) Begin(_ context.Context) (usecase.Transaction, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// FindAll returns every entry of the ledger in insertion order.
func (s *Store) FindAll(_ context.Context, tx usecase.Transaction, ledgerID string) ([]*domain.Entry, error) {
	entries := []*domain.Entry{}

	err := s.read(tx, func(btx *bbolt.Tx) error {
		b := ledgerBucket(btx, ledgerID)
		if b == nil {
			return nil
		}

		return b.Bucket(entriesBucketName).ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}

			e, err := r.entry()
			if err != nil {
				return err
			}

			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// FindLatestByDate returns the last entry in ledger order, or nil.
func (s *Store) FindLatestByDate(ctx context.Context, tx usecase.Transaction, ledgerID string) (*domain.Entry, error) {
	entries, err := s.FindAll(ctx, tx, ledgerID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}

	domain.SortLedgerOrder(entries)

	return entries[len(entries)-1], nil
}

// Insert creates a new entry.
func (s *Store) Insert(_ context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	btx, err := s.writer(tx)
	if err != nil {
		return err
	}

	b, err := createLedgerBucket(btx, entry.LedgerID)
	if err != nil {
		return err
	}

	return putEntry(b, entry)
}

// DeleteByID deletes an entry of the ledger.
func (s *Store) DeleteByID(_ context.Context, tx usecase.Transaction, ledgerID, id string) (bool, error) {
	btx, err := s.writer(tx)
	if err != nil {
		return false, err
	}

	b := ledgerBucket(btx, ledgerID)
	if b == nil {
		return false, nil
	}

	ids := b.Bucket(idsBucketName)
	key := ids.Get([]byte(id))
	if key == nil {
		return false, nil
	}

	if err := b.Bucket(entriesBucketName).Delete(key); err != nil {
		return false, err
	}
	if err := ids.Delete([]byte(id)); err != nil {
		return false, err
	}

	return true, nil
}

// ReplaceAll empties the ledger's buckets and writes entries. The ledger
// bucket itself survives, keeping its sequence.
func (s *Store) ReplaceAll(_ context.Context, tx usecase.Transaction, ledgerID string, entries []*domain.Entry) error {
	btx, err := s.writer(tx)
	if err != nil {
		return err
	}

	b, err := createLedgerBucket(btx, ledgerID)
	if err != nil {
		return err
	}

	for _, name := range [][]byte{entriesBucketName, idsBucketName} {
		if err := b.DeleteBucket(name); err != nil {
			return err
		}
		if _, err := b.CreateBucket(name); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if err := putEntry(b, e); err != nil {
			return err
		}
	}

	return nil
}

// NextSequence allocates the next insertion sequence of the ledger.
func (s *Store) NextSequence(_ context.Context, tx usecase.Transaction, ledgerID string) (int64, error) {
	btx, err := s.writer(tx)
	if err != nil {
		return 0, err
	}

	b, err := createLedgerBucket(btx, ledgerID)
	if err != nil {
		return 0, err
	}

	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}

	return int64(seq), nil
}

// LockLedger checks tx; bbolt's single writer already serializes it.
func (s *Store) LockLedger(_ context.Context, tx usecase.Transaction, _ string) error {
	_, err := s.writer(tx)
	return err
}

// ListLedgers returns the IDs of ledgers holding entries.
func (s *Store) ListLedgers(_ context.Context) ([]string, error) {
	ids := []string{}

	err := s.db.View(func(btx *bbolt.Tx) error {
		root := btx.Bucket(ledgersBucketName)

		return root.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			if first, _ := root.Bucket(k).Bucket(idsBucketName).Cursor().First(); first != nil {
				ids = append(ids, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	return ids, nil
}

func (s *Store) read(tx usecase.Transaction, fn func(*bbolt.Tx) error) error {
	if tx == nil {
		return s.db.View(fn)
	}

	btx, err := s.writer(tx)
	if err != nil {
		return err
	}

	return fn(btx)
}

func (s *Store) writer(tx usecase.Transaction) (*bbolt.Tx, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}

	t, ok := tx.(*Tx)
	if !ok || t.tx.DB() != s.db {
		return nil, ErrForeignTx
	}

	return t.tx, nil
}

func ledgerBucket(btx *bbolt.Tx, ledgerID string) *bbolt.Bucket {
	return btx.Bucket(ledgersBucketName).Bucket([]byte(ledgerID))
}

func createLedgerBucket(btx *bbolt.Tx, ledgerID string) (*bbolt.Bucket, error) {
	b, err := btx.Bucket(ledgersBucketName).CreateBucketIfNotExists([]byte(ledgerID))
	if err != nil {
		return nil, err
	}

	for _, name := range [][]byte{entriesBucketName, idsBucketName} {
		if _, err := b.CreateBucketIfNotExists(name); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func putEntry(b *bbolt.Bucket, e *domain.Entry) error {
	raw, err := json.Marshal(toRecord(e))
	if err != nil {
		return err
	}

	key := itob(uint64(e.Seq))
	if err := b.Bucket(entriesBucketName).Put(key, raw); err != nil {
		return err
	}
	if err := b.Bucket(idsBucketName).Put([]byte(e.ID), key); err != nil {
		return err
	}

	if uint64(e.Seq) > b.Sequence() {
		return b.SetSequence(uint64(e.Seq))
	}

	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Tx wraps a writable bbolt transaction.
type Tx struct {
	tx *bbolt.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, bbolt.ErrTxClosed) {
		return nil
	}
	return err
}
