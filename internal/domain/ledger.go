package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SortLedgerOrder sorts entries in ledger order: by date ascending, then by
// insertion sequence.
func SortLedgerOrder(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return ledgerLess(entries[i], entries[j])
	})
}

// SortDisplayOrder sorts entries most recent first, the exact reverse of
// ledger order.
func SortDisplayOrder(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return ledgerLess(entries[j], entries[i])
	})
}

func ledgerLess(a, b *Entry) bool {
	if !a.OccurredOn.Equal(b.OccurredOn) {
		return a.OccurredOn.Before(b.OccurredOn)
	}
	return a.Seq < b.Seq
}

// IsTail reports whether e would be placed after last in ledger order.
// A nil last means the ledger is empty.
func IsTail(last, e *Entry) bool {
	return last == nil || !e.OccurredOn.Before(last.OccurredOn)
}

// BalanceAfter returns the running balance of e when appended after prev.
func BalanceAfter(prev, e *Entry) decimal.Decimal {
	if prev == nil {
		return e.SignedAmount()
	}
	return prev.RunningBalance.Add(e.SignedAmount())
}

// Recompute puts entries in ledger order and rewrites every running
// balance from scratch. It returns how many balances changed.
func Recompute(entries []*Entry) int {
	SortLedgerOrder(entries)

	changed := 0
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.SignedAmount())
		if !e.RunningBalance.Equal(balance) {
			e.RunningBalance = balance
			changed++
		}
	}

	return changed
}

// BalanceMismatch describes an entry whose stored balance is wrong.
type BalanceMismatch struct {
	EntryID  string
	Stored   decimal.Decimal
	Expected decimal.Decimal
}

// ConsistencyReport is the outcome of a balance verification.
type ConsistencyReport struct {
	LedgerID      string
	Checked       int
	Mismatches    int
	FirstMismatch *BalanceMismatch
	FinalBalance  decimal.Decimal
}

// Consistent reports whether every checked balance was correct.
func (r *ConsistencyReport) Consistent() bool {
	return r.Mismatches == 0
}

// VerifyBalances checks stored balances against the prefix sums without
// modifying entries.
func VerifyBalances(ledgerID string, entries []*Entry) *ConsistencyReport {
	ordered := make([]*Entry, len(entries))
	copy(ordered, entries)
	SortLedgerOrder(ordered)

	report := &ConsistencyReport{LedgerID: ledgerID, Checked: len(ordered)}
	balance := decimal.Zero
	for _, e := range ordered {
		balance = balance.Add(e.SignedAmount())
		if e.RunningBalance.Equal(balance) {
			continue
		}
		report.Mismatches++
		if report.FirstMismatch == nil {
			report.FirstMismatch = &BalanceMismatch{
				EntryID:  e.ID,
				Stored:   e.RunningBalance,
				Expected: balance,
			}
		}
	}
	report.FinalBalance = balance

	return report
}

// EntryFilter selects entries by date range and kind. Zero fields match
// everything. Bounds are inclusive.
type EntryFilter struct {
	Start *time.Time
	End   *time.Time
	Kind  *Kind
}

// IsZero reports whether the filter matches every entry.
func (f EntryFilter) IsZero() bool {
	return f.Start == nil && f.End == nil && f.Kind == nil
}

// Validate checks the filter bounds.
func (f EntryFilter) Validate() error {
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return ErrInvalidDateRange
	}
	if f.Kind != nil && !f.Kind.IsValid() {
		return ErrInvalidKind
	}
	return nil
}

// Matches reports whether e satisfies the filter.
func (f EntryFilter) Matches(e *Entry) bool {
	if f.Start != nil && e.OccurredOn.Before(DateOf(*f.Start)) {
		return false
	}
	if f.End != nil && e.OccurredOn.After(DateOf(*f.End)) {
		return false
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	return true
}

// Apply returns the entries matching the filter, keeping their order.
func (f EntryFilter) Apply(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Summary aggregates a set of entries. Running balances are not involved:
// a summary of a filtered subset is local to that subset.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	Average      decimal.Decimal `json:"average"`
	Count        int             `json:"count"`
}

// Summarize totals entries by kind. Average is the mean unsigned amount,
// zero for an empty set, kept at full division precision. Rounding to
// AmountScale is left to presentation.
func Summarize(entries []*Entry) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Average:      decimal.Zero,
	}

	for _, e := range entries {
		switch e.Kind {
		case KindIncome:
			s.TotalIncome = s.TotalIncome.Add(e.Amount)
		case KindExpense:
			s.TotalExpense = s.TotalExpense.Add(e.Amount)
		}
		s.Count++
	}

	s.NetBalance = s.TotalIncome.Sub(s.TotalExpense)
	if s.Count > 0 {
		s.Average = s.TotalIncome.Add(s.TotalExpense).
			Div(decimal.NewFromInt(int64(s.Count)))
	}

	return s
}
