package dto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"number", `500`, "500", false},
		{"fractional number", `12.5`, "12.5", false},
		{"plain string", `"500"`, "500", false},
		{"dollar string", `"$1,234.50"`, "1234.5", false},
		{"baht string", `"฿500"`, "500", false},
		{"rounds to cents", `3.455`, "3.46", false},
		{"negative string", `"$-200.00"`, "-200", false},
		{"word", `"lots"`, "", true},
		{"empty string", `""`, "", true},
		{"bool", `true`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", a)
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !a.IsSet() || !a.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("expected %s, got %s (set=%v)", tt.want, a, a.IsSet())
			}
		})
	}
}

func TestAmount_NullLeavesUnset(t *testing.T) {
	var req AddEntryRequest
	if err := json.Unmarshal([]byte(`{"amount":null}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Amount.IsSet() {
		t.Fatalf("expected null amount to be unset")
	}
}

func TestAmount_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewAmount(decimal.RequireFromString("-200")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "-200.00" {
		t.Fatalf("expected plain number -200.00, got %s", data)
	}
}

func TestAddEntryRequest_ToUseCaseInput(t *testing.T) {
	var req AddEntryRequest
	body := `{"occurred_on":"2025-01-02","label":"Sale","kind":"Income","amount":"$500.00"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, err := req.ToUseCaseInput("business")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := usecase.AddEntryInput{
		LedgerID:   "business",
		OccurredOn: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Label:      "Sale",
		Kind:       domain.KindIncome,
		Amount:     decimal.NewFromInt(500),
	}
	if got.LedgerID != want.LedgerID || !got.OccurredOn.Equal(want.OccurredOn) ||
		got.Label != want.Label || got.Kind != want.Kind || !got.Amount.Equal(want.Amount) {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestAddEntryRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		request AddEntryRequest
		want    error
	}{
		{"bad date", AddEntryRequest{OccurredOn: "02/01/2025", Kind: "income", Amount: NewAmount(decimal.NewFromInt(1))}, domain.ErrInvalidDate},
		{"bad kind", AddEntryRequest{OccurredOn: "2025-01-02", Kind: "transfer", Amount: NewAmount(decimal.NewFromInt(1))}, domain.ErrInvalidKind},
		{"missing amount", AddEntryRequest{OccurredOn: "2025-01-02", Kind: "expense"}, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.request.ToUseCaseInput("default")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExpenseAndTransactionRequests(t *testing.T) {
	var expense ExpenseRequest
	if err := json.Unmarshal([]byte(`{"date":"2025-03-01","item":"Rent","transactionType":"expense","amount":"700"}`), &expense); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	in, err := expense.ToUseCaseInput("default")
	if err != nil || in.Label != "Rent" || in.Kind != domain.KindExpense || !in.Amount.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected expense input %+v err=%v", in, err)
	}

	var tx TransactionRequest
	if err := json.Unmarshal([]byte(`{"type":"income","amount":1200.75,"description":"Salary","date":"2025-03-01T08:00:00Z"}`), &tx); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	in, err = tx.ToUseCaseInput("default")
	if err != nil || in.Label != "Salary" || in.Kind != domain.KindIncome || !in.Amount.Equal(decimal.RequireFromString("1200.75")) {
		t.Fatalf("unexpected transaction input %+v err=%v", in, err)
	}
	if !in.OccurredOn.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected timestamp truncated to date, got %s", in.OccurredOn)
	}
}

func TestFilterParams_ToDomain(t *testing.T) {
	f, err := FilterParams{Start: "2025-01-01", End: "2025-01-31", Kind: "expense"}.ToDomain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Start == nil || f.End == nil || f.Kind == nil || *f.Kind != domain.KindExpense {
		t.Fatalf("unexpected filter %+v", f)
	}

	f, err = FilterParams{}.ToDomain()
	if err != nil || !f.IsZero() {
		t.Fatalf("expected open filter, got %+v err=%v", f, err)
	}

	if _, err := (FilterParams{Start: "2025-02-01", End: "2025-01-01"}).ToDomain(); !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := (FilterParams{Kind: "gift"}).ToDomain(); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := (FilterParams{End: "soon"}).ToDomain(); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
