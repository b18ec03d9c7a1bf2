package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// Amount is a monetary request field. Clients send either a JSON number
// (500, 12.5) or a display string ("$1,200.00", "฿500").
type Amount struct {
	decimal.Decimal
	set bool
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d, set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	d, err := domain.ParseAmount(raw)
	if err != nil {
		return err
	}

	*a = NewAmount(d)
	return nil
}

// MarshalJSON renders the amount as a plain number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(domain.AmountScale)), nil
}

// IsSet reports whether the field was present and non-null.
func (a Amount) IsSet() bool {
	return a.set
}

// AddEntryRequest represents a request to add an entry to a ledger.
type AddEntryRequest struct {
	OccurredOn string `json:"occurred_on"`
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Amount     Amount `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *AddEntryRequest) ToUseCaseInput(ledgerID string) (usecase.AddEntryInput, error) {
	return newAddEntryInput(ledgerID, r.OccurredOn, r.Label, r.Kind, r.Amount)
}

// ExpenseRequest is the body of POST /api/expenses.
type ExpenseRequest struct {
	Date            string `json:"date"`
	Item            string `json:"item"`
	TransactionType string `json:"transactionType"`
	Amount          Amount `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *ExpenseRequest) ToUseCaseInput(ledgerID string) (usecase.AddEntryInput, error) {
	return newAddEntryInput(ledgerID, r.Date, r.Item, r.TransactionType, r.Amount)
}

// TransactionRequest is the body of POST /api/transactions.
type TransactionRequest struct {
	Type        string `json:"type"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// ToUseCaseInput converts to use case input.
func (r *TransactionRequest) ToUseCaseInput(ledgerID string) (usecase.AddEntryInput, error) {
	return newAddEntryInput(ledgerID, r.Date, r.Description, r.Type, r.Amount)
}

func newAddEntryInput(ledgerID, date, label, kind string, amount Amount) (usecase.AddEntryInput, error) {
	occurredOn, err := domain.ParseDate(date)
	if err != nil {
		return usecase.AddEntryInput{}, err
	}

	k, err := domain.ParseKind(kind)
	if err != nil {
		return usecase.AddEntryInput{}, err
	}

	if !amount.IsSet() {
		return usecase.AddEntryInput{}, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}

	return usecase.AddEntryInput{
		LedgerID:   ledgerID,
		OccurredOn: occurredOn,
		Label:      label,
		Kind:       k,
		Amount:     amount.Decimal,
	}, nil
}

// FilterParams are the raw query parameters of a filtered listing.
type FilterParams struct {
	Start string
	End   string
	Kind  string
}

// ToDomain parses the parameters. Empty ones leave the filter open.
func (p FilterParams) ToDomain() (domain.EntryFilter, error) {
	var f domain.EntryFilter

	if p.Start != "" {
		t, err := domain.ParseDate(p.Start)
		if err != nil {
			return f, err
		}
		f.Start = &t
	}

	if p.End != "" {
		t, err := domain.ParseDate(p.End)
		if err != nil {
			return f, err
		}
		f.End = &t
	}

	if p.Kind != "" {
		k, err := domain.ParseKind(p.Kind)
		if err != nil {
			return f, err
		}
		f.Kind = &k
	}

	return f, f.Validate()
}

// dateString renders a calendar date for responses.
func dateString(t time.Time) string {
	return domain.FormatDate(t)
}
