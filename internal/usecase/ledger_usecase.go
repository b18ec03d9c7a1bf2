package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/iho/cashbook/internal/domain"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// LedgerUseCase is the ledger engine. It owns the entries of every ledger
// and keeps their running balances equal to the prefix sums of signed
// amounts in ledger order. Mutations of one ledger are serialized; every
// public method returns only after the balances are consistent again.
type LedgerUseCase struct {
	txManager TransactionManager
	entryRepo EntryRepository
	idGen     IDGenerator
	cache     Cache
	cacheTTL  time.Duration
	publisher EventPublisher
	retrier   Retrier
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
	locks     *ledgerLocks
	summaries singleflight.Group
}

// Option configures optional collaborators of LedgerUseCase.
type Option func(*LedgerUseCase)

// WithSummaryCache caches unfiltered ledger summaries.
func WithSummaryCache(cache Cache, ttl time.Duration) Option {
	return func(uc *LedgerUseCase) {
		uc.cache = cache
		if ttl > 0 {
			uc.cacheTTL = ttl
		}
	}
}

// WithEventPublisher publishes an event after every committed mutation.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(uc *LedgerUseCase) { uc.publisher = publisher }
}

// WithRetrier retries mutation transactions on transient storage errors.
func WithRetrier(retrier Retrier) Option {
	return func(uc *LedgerUseCase) { uc.retrier = retrier }
}

// WithMetrics records engine metrics.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(uc *LedgerUseCase) { uc.metrics = metrics }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(uc *LedgerUseCase) { uc.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(uc *LedgerUseCase) { uc.now = now }
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	idGen IDGenerator,
	opts ...Option,
) *LedgerUseCase {
	uc := &LedgerUseCase{
		txManager: txManager,
		entryRepo: entryRepo,
		idGen:     idGen,
		cacheTTL:  DefaultSummaryCacheTTL,
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newLedgerLocks(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// AddEntryInput represents input for adding an entry.
type AddEntryInput struct {
	OccurredOn time.Time
	LedgerID   string
	Label      string
	Kind       domain.Kind
	Amount     decimal.Decimal
}

// RecomputeResult describes a recompute pass.
type RecomputeResult struct {
	LedgerID string
	Entries  int
	Changed  int
}

// ListAll returns every entry of the ledger, most recent first.
func (uc *LedgerUseCase) ListAll(ctx context.Context, ledgerID string) ([]*domain.Entry, error) {
	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.FindAll(ctx, nil, ledgerID)
	if err != nil {
		return nil, storageError("find entries", err)
	}

	domain.SortDisplayOrder(entries)

	return entries, nil
}

// Add records a new entry and returns it with its ID and running balance.
//
// An entry dated on or after the current last entry is appended with an
// incremental balance. A back-dated entry triggers a full recompute so the
// balances of every later entry stay correct.
func (uc *LedgerUseCase) Add(ctx context.Context, input AddEntryInput) (*domain.Entry, error) {
	entry := &domain.Entry{
		LedgerID: input.LedgerID,
		Label:    strings.TrimSpace(input.Label),
		Kind:     input.Kind,
		Amount:   input.Amount.Round(domain.AmountScale),
	}
	if !input.OccurredOn.IsZero() {
		entry.OccurredOn = domain.DateOf(input.OccurredOn)
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	unlock := uc.locks.Lock(entry.LedgerID)

	recomputed := 0
	err := uc.withinTx(ctx, func(tx Transaction) error {
		recomputed = 0

		if err := uc.entryRepo.LockLedger(ctx, tx, entry.LedgerID); err != nil {
			return storageError("lock ledger", err)
		}

		seq, err := uc.entryRepo.NextSequence(ctx, tx, entry.LedgerID)
		if err != nil {
			return storageError("allocate sequence", err)
		}

		latest, err := uc.entryRepo.FindLatestByDate(ctx, tx, entry.LedgerID)
		if err != nil {
			return storageError("find latest entry", err)
		}

		entry.ID = uc.idGen.Generate()
		entry.Seq = seq
		entry.CreatedAt = uc.now()

		if domain.IsTail(latest, entry) {
			entry.RunningBalance = domain.BalanceAfter(latest, entry)
			if err := uc.entryRepo.Insert(ctx, tx, entry); err != nil {
				return storageError("insert entry", err)
			}
			return nil
		}

		entries, err := uc.entryRepo.FindAll(ctx, tx, entry.LedgerID)
		if err != nil {
			return storageError("find entries", err)
		}
		entries = append(entries, entry)

		recomputed = len(entries)
		return uc.recompute(ctx, tx, entry.LedgerID, entries, true)
	})
	if err == nil {
		uc.invalidateSummary(ctx, entry.LedgerID)
	}
	unlock()

	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("ledger_id", entry.LedgerID).
		Str("entry_id", entry.ID).
		Str("kind", string(entry.Kind)).
		Str("amount", entry.Amount.String()).
		Str("running_balance", entry.RunningBalance.String()).
		Int("recomputed", recomputed).
		Msg("entry added")

	if uc.metrics != nil {
		uc.metrics.EntryAdded(entry.Kind)
	}

	uc.publish(ctx, entry.LedgerID, domain.EventTypeEntryAdded, domain.EntryAddedEvent{
		EntryID:        entry.ID,
		OccurredOn:     domain.FormatDate(entry.OccurredOn),
		Kind:           string(entry.Kind),
		Amount:         entry.Amount.String(),
		RunningBalance: entry.RunningBalance.String(),
		Recomputed:     recomputed,
	})

	return entry, nil
}

// Remove deletes an entry and recomputes the balances of the rest of the
// ledger.
func (uc *LedgerUseCase) Remove(ctx context.Context, ledgerID, id string) error {
	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return domain.ErrEntryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	unlock := uc.locks.Lock(ledgerID)

	recomputed := 0
	err := uc.withinTx(ctx, func(tx Transaction) error {
		if err := uc.entryRepo.LockLedger(ctx, tx, ledgerID); err != nil {
			return storageError("lock ledger", err)
		}

		deleted, err := uc.entryRepo.DeleteByID(ctx, tx, ledgerID, id)
		if err != nil {
			return storageError("delete entry", err)
		}
		if !deleted {
			return domain.ErrEntryNotFound
		}

		entries, err := uc.entryRepo.FindAll(ctx, tx, ledgerID)
		if err != nil {
			return storageError("find entries", err)
		}

		recomputed = len(entries)
		return uc.recompute(ctx, tx, ledgerID, entries, false)
	})
	if err == nil {
		uc.invalidateSummary(ctx, ledgerID)
	}
	unlock()

	if err != nil {
		return err
	}

	uc.logger.Info().
		Str("ledger_id", ledgerID).
		Str("entry_id", id).
		Int("recomputed", recomputed).
		Msg("entry removed")

	if uc.metrics != nil {
		uc.metrics.EntryRemoved()
	}

	uc.publish(ctx, ledgerID, domain.EventTypeEntryRemoved, domain.EntryRemovedEvent{
		EntryID:    id,
		Recomputed: recomputed,
	})

	return nil
}

// Filter returns the entries matching filter, most recent first. Balances
// are the ledger-wide running balances, not balances local to the subset.
func (uc *LedgerUseCase) Filter(ctx context.Context, ledgerID string, filter domain.EntryFilter) ([]*domain.Entry, error) {
	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.FindAll(ctx, nil, ledgerID)
	if err != nil {
		return nil, storageError("find entries", err)
	}

	matched := filter.Apply(entries)
	domain.SortDisplayOrder(matched)

	return matched, nil
}

// Summarize aggregates the given entries.
func (uc *LedgerUseCase) Summarize(entries []*domain.Entry) domain.Summary {
	return domain.Summarize(entries)
}

// Summary aggregates the entries of the ledger matching filter. Unfiltered
// summaries are served from the cache when one is configured.
func (uc *LedgerUseCase) Summary(ctx context.Context, ledgerID string, filter domain.EntryFilter) (domain.Summary, error) {
	if !filter.IsZero() || uc.cache == nil {
		entries, err := uc.Filter(ctx, ledgerID, filter)
		if err != nil {
			return domain.Summary{}, err
		}
		return domain.Summarize(entries), nil
	}

	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return domain.Summary{}, err
	}

	// Shared by every waiting caller, so detached from the first one's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := uc.summaries.Do(ledgerID, func() (any, error) {
		return uc.cachedSummary(shared, ledgerID)
	})
	if err != nil {
		return domain.Summary{}, err
	}

	return v.(domain.Summary), nil
}

// Recompute rewrites every running balance of the ledger from scratch.
// Running it on a consistent ledger changes nothing.
func (uc *LedgerUseCase) Recompute(ctx context.Context, ledgerID string) (*RecomputeResult, error) {
	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	unlock := uc.locks.Lock(ledgerID)

	result := &RecomputeResult{LedgerID: ledgerID}
	err := uc.withinTx(ctx, func(tx Transaction) error {
		if err := uc.entryRepo.LockLedger(ctx, tx, ledgerID); err != nil {
			return storageError("lock ledger", err)
		}

		entries, err := uc.entryRepo.FindAll(ctx, tx, ledgerID)
		if err != nil {
			return storageError("find entries", err)
		}

		result.Entries = len(entries)
		result.Changed = domain.Recompute(entries)
		if result.Changed == 0 {
			return nil
		}

		if err := uc.entryRepo.ReplaceAll(ctx, tx, ledgerID, entries); err != nil {
			return storageError("replace entries", err)
		}
		return nil
	})
	if err == nil && result.Changed > 0 {
		uc.invalidateSummary(ctx, ledgerID)
	}
	unlock()

	if err != nil {
		return nil, err
	}

	if result.Changed > 0 {
		uc.logger.Warn().
			Str("ledger_id", ledgerID).
			Int("entries", result.Entries).
			Int("changed", result.Changed).
			Msg("ledger balances repaired")

		uc.publish(ctx, ledgerID, domain.EventTypeLedgerRecomputed, domain.LedgerRecomputedEvent{
			Entries: result.Entries,
			Changed: result.Changed,
		})
	}

	return result, nil
}

// CheckConsistency verifies the stored balances of the ledger without
// modifying anything.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context, ledgerID string) (*domain.ConsistencyReport, error) {
	if err := domain.ValidateLedgerID(ledgerID); err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.FindAll(ctx, nil, ledgerID)
	if err != nil {
		return nil, storageError("find entries", err)
	}

	report := domain.VerifyBalances(ledgerID, entries)
	if !report.Consistent() {
		uc.logger.Warn().
			Str("ledger_id", ledgerID).
			Int("mismatches", report.Mismatches).
			Str("first_entry_id", report.FirstMismatch.EntryID).
			Msg("ledger balances inconsistent")
	}

	return report, nil
}

// ListLedgers returns the IDs of all ledgers holding entries.
func (uc *LedgerUseCase) ListLedgers(ctx context.Context) ([]string, error) {
	ids, err := uc.entryRepo.ListLedgers(ctx)
	if err != nil {
		return nil, storageError("list ledgers", err)
	}
	return ids, nil
}

// recompute runs the recompute pass over entries and persists the result.
// force writes even when no stored balance changed, for entry sets that
// differ from what storage holds.
func (uc *LedgerUseCase) recompute(ctx context.Context, tx Transaction, ledgerID string, entries []*domain.Entry, force bool) error {
	start := time.Now()

	changed := domain.Recompute(entries)
	if changed > 0 || force {
		if err := uc.entryRepo.ReplaceAll(ctx, tx, ledgerID, entries); err != nil {
			return storageError("replace entries", err)
		}
	}

	elapsed := time.Since(start)
	if uc.metrics != nil {
		uc.metrics.RecomputeCompleted(len(entries), elapsed)
	}

	uc.logger.Debug().
		Str("ledger_id", ledgerID).
		Int("entries", len(entries)).
		Int("changed", changed).
		Dur("duration", elapsed).
		Msg("recompute pass completed")

	return nil
}

func (uc *LedgerUseCase) withinTx(ctx context.Context, fn func(tx Transaction) error) error {
	if uc.retrier == nil {
		return uc.runTx(ctx, fn)
	}

	return uc.retrier.Retry(ctx, func() error {
		return uc.runTx(ctx, fn)
	})
}

func (uc *LedgerUseCase) runTx(ctx context.Context, fn func(tx Transaction) error) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return storageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("commit transaction", err)
	}

	return nil
}

// cachedSummary serves the unfiltered summary from the cache. Misses are
// computed under the ledger lock so a concurrent mutation cannot leave a
// stale summary behind: writers invalidate before releasing the lock.
func (uc *LedgerUseCase) cachedSummary(ctx context.Context, ledgerID string) (domain.Summary, error) {
	key := summaryCachePrefix + ledgerID

	if summary, ok := uc.readSummary(ctx, key); ok {
		return summary, nil
	}

	unlock := uc.locks.Lock(ledgerID)
	defer unlock()

	if summary, ok := uc.readSummary(ctx, key); ok {
		return summary, nil
	}

	entries, err := uc.entryRepo.FindAll(ctx, nil, ledgerID)
	if err != nil {
		return domain.Summary{}, storageError("find entries", err)
	}

	summary := domain.Summarize(entries)

	data, err := json.Marshal(summary)
	if err == nil {
		err = uc.cache.Set(ctx, key, data, uc.cacheTTL)
	}
	if err != nil {
		uc.logger.Warn().Err(err).Str("ledger_id", ledgerID).Msg("failed to cache summary")
	}

	return summary, nil
}

func (uc *LedgerUseCase) readSummary(ctx context.Context, key string) (domain.Summary, bool) {
	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.logger.Warn().Err(err).Str("key", key).Msg("summary cache read failed")
		}
		uc.recordCacheLookup(false)
		return domain.Summary{}, false
	}

	var summary domain.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt cached summary")
		uc.recordCacheLookup(false)
		return domain.Summary{}, false
	}

	uc.recordCacheLookup(true)
	return summary, true
}

func (uc *LedgerUseCase) recordCacheLookup(hit bool) {
	if uc.metrics != nil {
		uc.metrics.SummaryCacheLookup(hit)
	}
}

func (uc *LedgerUseCase) invalidateSummary(ctx context.Context, ledgerID string) {
	if uc.cache == nil {
		return
	}

	if err := uc.cache.Delete(ctx, summaryCachePrefix+ledgerID); err != nil {
		uc.logger.Error().Err(err).Str("ledger_id", ledgerID).Msg("failed to invalidate cached summary")
	}
}

// publish sends an event for a committed mutation. Failures are logged and
// counted; the mutation itself already succeeded.
func (uc *LedgerUseCase) publish(ctx context.Context, ledgerID, eventType string, payload any) {
	if uc.publisher == nil {
		return
	}

	event := &domain.LedgerEvent{
		ID:         uc.idGen.Generate(),
		Type:       eventType,
		LedgerID:   ledgerID,
		Payload:    domain.ToPayload(payload),
		OccurredAt: uc.now(),
	}

	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", eventType).
			Msg("failed to publish event")

		if uc.metrics != nil {
			uc.metrics.EventPublishFailed(eventType)
		}
	}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
