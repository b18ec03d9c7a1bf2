package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxLabelLength    = 255
	MaxLedgerIDLength = 64
	MinEntryAmount    = "0.01"
	MaxEntryAmount    = "1000000000000" // 1 trillion
)

var (
	minEntryAmount = decimal.RequireFromString(MinEntryAmount)
	maxEntryAmount = decimal.RequireFromString(MaxEntryAmount)
)

// ValidateLabel validates an entry label.
func ValidateLabel(label string) error {
	label = strings.TrimSpace(label)

	if label == "" {
		return ErrEmptyLabel
	}

	if utf8.RuneCountInString(label) > MaxLabelLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrLabelTooLong, MaxLabelLength)
	}

	return nil
}

// ValidateAmount validates an entry amount. Amounts are unsigned; the sign
// comes from the entry kind.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if amount.LessThan(minEntryAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinEntryAmount)
	}

	if amount.GreaterThan(maxEntryAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxEntryAmount)
	}

	return nil
}

// ValidateLedgerID validates a ledger identifier.
func ValidateLedgerID(id string) error {
	if id == "" || len(id) > MaxLedgerIDLength {
		return ErrInvalidLedgerID
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidLedgerID, r)
		}
	}

	return nil
}
