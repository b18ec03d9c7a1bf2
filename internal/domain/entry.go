package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells whether an entry adds to or subtracts from the balance.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// IsValid checks if the kind is one of the known kinds.
func (k Kind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

// ParseKind parses a kind, ignoring case and surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Entry is a single income or expense record of a ledger.
//
// RunningBalance is derived: it always equals the sum of the signed amounts
// of every entry at or before this one in ledger order.
type Entry struct {
	CreatedAt      time.Time
	OccurredOn     time.Time
	ID             string
	LedgerID       string
	Label          string
	Kind           Kind
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
	Seq            int64
}

// SignedAmount returns the amount as it affects the balance.
func (e *Entry) SignedAmount() decimal.Decimal {
	if e.Kind == KindExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Validate checks the caller-supplied fields of the entry.
func (e *Entry) Validate() error {
	if err := ValidateLedgerID(e.LedgerID); err != nil {
		return err
	}
	if err := ValidateLabel(e.Label); err != nil {
		return err
	}
	if !e.Kind.IsValid() {
		return ErrInvalidKind
	}
	if e.OccurredOn.IsZero() {
		return ErrInvalidDate
	}
	return ValidateAmount(e.Amount)
}

// Clone returns a copy that can be mutated without affecting e.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// CloneEntries copies every entry of the slice.
func CloneEntries(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
