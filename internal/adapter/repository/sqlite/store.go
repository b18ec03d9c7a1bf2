// Package sqlite is a single-file storage backend on modernc.org/sqlite.
// One connection serves the whole process, so transactions never
// interleave and LockLedger has nothing to do.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// ErrForeignTx is returned when a transaction from another backend is passed in.
var ErrForeignTx = errors.New("sqlite: transaction does not belong to this store")

// ErrTxRequired is returned by write operations called without a transaction.
var ErrTxRequired = errors.New("sqlite: operation requires a transaction")

const entryColumns = `id, ledger_id, seq, occurred_on, label, kind, amount, running_balance, created_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements usecase.EntryRepository and usecase.TransactionManager.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// FindAll returns every entry of the ledger in ledger order.
func (s *Store) FindAll(ctx context.Context, tx usecase.Transaction, ledgerID string) ([]*domain.Entry, error) {
	q, err := s.reader(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE ledger_id = ? ORDER BY occurred_on, seq`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// FindLatestByDate returns the last entry in ledger order, or nil.
func (s *Store) FindLatestByDate(ctx context.Context, tx usecase.Transaction, ledgerID string) (*domain.Entry, error) {
	q, err := s.reader(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE ledger_id = ? ORDER BY occurred_on DESC, seq DESC LIMIT 1`, ledgerID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return e, err
}

// Insert creates a new entry.
func (s *Store) Insert(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	q, err := s.writer(tx)
	if err != nil {
		return err
	}

	if err := ensureLedger(ctx, q, entry.LedgerID, entry.Seq); err != nil {
		return err
	}

	return insertEntry(ctx, q, entry)
}

// DeleteByID deletes an entry of the ledger.
func (s *Store) DeleteByID(ctx context.Context, tx usecase.Transaction, ledgerID, id string) (bool, error) {
	q, err := s.writer(tx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM entries WHERE ledger_id = ? AND id = ?`, ledgerID, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// ReplaceAll deletes the ledger's rows and inserts entries.
func (s *Store) ReplaceAll(ctx context.Context, tx usecase.Transaction, ledgerID string, entries []*domain.Entry) error {
	q, err := s.writer(tx)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM entries WHERE ledger_id = ?`, ledgerID); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	var maxSeq int64
	for _, e := range entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	if len(entries) > 0 {
		if err := ensureLedger(ctx, q, ledgerID, maxSeq); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if err := insertEntry(ctx, q, e); err != nil {
			return err
		}
	}

	return nil
}

// NextSequence allocates the next insertion sequence of the ledger.
func (s *Store) NextSequence(ctx context.Context, tx usecase.Transaction, ledgerID string) (int64, error) {
	q, err := s.writer(tx)
	if err != nil {
		return 0, err
	}

	var seq int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO ledgers (id, last_seq) VALUES (?, 1)
		 ON CONFLICT (id) DO UPDATE SET last_seq = last_seq + 1
		 RETURNING last_seq`, ledgerID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}

	return seq, nil
}

// LockLedger checks tx; the single connection already serializes writers.
func (s *Store) LockLedger(_ context.Context, tx usecase.Transaction, _ string) error {
	_, err := s.writer(tx)
	return err
}

// ListLedgers returns the IDs of ledgers holding entries.
func (s *Store) ListLedgers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ledger_id FROM entries ORDER BY ledger_id`)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *Store) reader(tx usecase.Transaction) (querier, error) {
	if tx == nil {
		return s.db, nil
	}
	return s.writer(tx)
}

func (s *Store) writer(tx usecase.Transaction) (querier, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}

	t, ok := tx.(*Tx)
	if !ok {
		return nil, ErrForeignTx
	}

	return t.tx, nil
}

func ensureLedger(ctx context.Context, q querier, ledgerID string, seq int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledgers (id, last_seq) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET last_seq = MAX(last_seq, excluded.last_seq)`, ledgerID, seq)
	if err != nil {
		return fmt.Errorf("ensure ledger: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, q querier, e *domain.Entry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.LedgerID,
		e.Seq,
		domain.FormatDate(e.OccurredOn),
		e.Label,
		string(e.Kind),
		e.Amount.String(),
		e.RunningBalance.String(),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var (
		e                           domain.Entry
		kind, occurredOn, createdAt string
		amount, runningBalance      string
	)

	if err := row.Scan(&e.ID, &e.LedgerID, &e.Seq, &occurredOn, &e.Label, &kind, &amount, &runningBalance, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.OccurredOn, err = time.Parse(domain.DateLayout, occurredOn); err != nil {
		return nil, fmt.Errorf("entry %s: occurred_on: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("entry %s: created_at: %w", e.ID, err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("entry %s: amount: %w", e.ID, err)
	}
	if e.RunningBalance, err = decimal.NewFromString(runningBalance); err != nil {
		return nil, fmt.Errorf("entry %s: running_balance: %w", e.ID, err)
	}
	e.Kind = domain.Kind(kind)

	return &e, nil
}

// Tx wraps a database/sql transaction.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
