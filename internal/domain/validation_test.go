package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name        string
		amount      decimal.Decimal
		expectError error
	}{
		{"positive", decimal.RequireFromString("500.00"), nil},
		{"minimum", decimal.RequireFromString("0.01"), nil},
		{"zero", decimal.Zero, ErrInvalidAmount},
		{"negative", decimal.NewFromInt(-5), ErrInvalidAmount},
		{"below minimum", decimal.RequireFromString("0.001"), ErrAmountTooSmall},
		{"above maximum", decimal.RequireFromString("1000000000000.01"), ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)

			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	if err := ValidateLabel("Sale"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateLabel("   "); !errors.Is(err, ErrEmptyLabel) {
		t.Errorf("expected ErrEmptyLabel, got %v", err)
	}
	if err := ValidateLabel(strings.Repeat("x", MaxLabelLength+1)); !errors.Is(err, ErrLabelTooLong) {
		t.Errorf("expected ErrLabelTooLong, got %v", err)
	}
}

func TestValidateLedgerID(t *testing.T) {
	for _, id := range []string{"default", "household-2025", "a.b_c"} {
		if err := ValidateLedgerID(id); err != nil {
			t.Errorf("ValidateLedgerID(%q) unexpected error: %v", id, err)
		}
	}
	for _, id := range []string{"", "has space", "semi;colon", strings.Repeat("x", MaxLedgerIDLength+1)} {
		if err := ValidateLedgerID(id); !errors.Is(err, ErrInvalidLedgerID) {
			t.Errorf("ValidateLedgerID(%q) expected ErrInvalidLedgerID, got %v", id, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Income ")
	if err != nil || k != KindIncome {
		t.Fatalf("expected income, got %q err=%v", k, err)
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestEntry_Validate(t *testing.T) {
	valid := func() *Entry {
		return &Entry{
			LedgerID:   "default",
			OccurredOn: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Label:      "Sale",
			Kind:       KindIncome,
			Amount:     decimal.NewFromInt(500),
		}
	}

	tests := []struct {
		name        string
		mutate      func(e *Entry)
		expectError error
	}{
		{"valid", func(e *Entry) {}, nil},
		{"zero amount", func(e *Entry) { e.Amount = decimal.Zero }, ErrInvalidAmount},
		{"empty label", func(e *Entry) { e.Label = "" }, ErrEmptyLabel},
		{"bad kind", func(e *Entry) { e.Kind = "refund" }, ErrInvalidKind},
		{"missing date", func(e *Entry) { e.OccurredOn = time.Time{} }, ErrInvalidDate},
		{"missing ledger", func(e *Entry) { e.LedgerID = "" }, ErrInvalidLedgerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)

			err := e.Validate()
			if tt.expectError == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}
			if tt.expectError != nil && !IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}
