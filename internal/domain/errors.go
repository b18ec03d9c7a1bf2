package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them so
// callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
)

var (
	// Entry errors
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrAmountTooSmall  = fmt.Errorf("%w: amount below minimum allowed", ErrValidation)
	ErrAmountTooLarge  = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrEmptyLabel      = fmt.Errorf("%w: label is required", ErrValidation)
	ErrLabelTooLong    = fmt.Errorf("%w: label is too long", ErrValidation)
	ErrInvalidKind     = fmt.Errorf("%w: kind must be income or expense", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidLedgerID = fmt.Errorf("%w: invalid ledger id", ErrValidation)

	// Filter errors
	ErrInvalidDateRange = fmt.Errorf("%w: start date is after end date", ErrValidation)

	ErrEntryNotFound = fmt.Errorf("entry %w", ErrNotFound)
)

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err refers to a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
