package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
)

func testEntry(kind domain.Kind, amount, balance string) *domain.Entry {
	return &domain.Entry{
		ID:             "e1",
		LedgerID:       "default",
		Seq:            3,
		OccurredOn:     time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Label:          "Supplies",
		Kind:           kind,
		Amount:         decimal.RequireFromString(amount),
		RunningBalance: decimal.RequireFromString(balance),
		CreatedAt:      time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestEntryFromDomain(t *testing.T) {
	data, err := json.Marshal(OK(EntryFromDomain(testEntry(domain.KindExpense, "700", "-200"))))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"success":true,"data":{"id":"e1","ledger_id":"default","seq":3,"occurred_on":"2025-01-02","label":"Supplies","kind":"expense","amount":"700.00","running_balance":"-200.00","created_at":"2025-01-02T09:00:00Z"}}`
	if string(data) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", data, want)
	}
}

func TestFail(t *testing.T) {
	data, err := json.Marshal(Fail("entry not found"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"success":false,"data":null,"message":"entry not found"}` {
		t.Fatalf("unexpected body %s", data)
	}
}

func TestSummaryFromDomain(t *testing.T) {
	resp := SummaryFromDomain(domain.Summary{
		TotalIncome:  decimal.NewFromInt(500),
		TotalExpense: decimal.NewFromInt(700),
		NetBalance:   decimal.NewFromInt(-200),
		Average:      decimal.NewFromInt(600),
		Count:        2,
	})

	data, _ := json.Marshal(resp)
	want := `{"total_income":"500.00","total_expense":"700.00","net_balance":"-200.00","average":"600.00","count":2}`
	if string(data) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", data, want)
	}
}

func TestSummaryConverters_RoundAverageForDisplay(t *testing.T) {
	summary := domain.Summarize([]*domain.Entry{
		testEntry(domain.KindIncome, "500", "500"),
		testEntry(domain.KindExpense, "200", "300"),
		testEntry(domain.KindExpense, "100", "200"),
	})

	data, _ := json.Marshal(SummaryFromDomain(summary))
	want := `{"total_income":"500.00","total_expense":"300.00","net_balance":"200.00","average":"266.67","count":3}`
	if string(data) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", data, want)
	}

	data, _ = json.Marshal(TransactionSummaryFromDomain(summary))
	want = `{"totalIncome":500.00,"totalExpense":300.00,"balance":200.00,"average":266.67,"count":3}`
	if string(data) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", data, want)
	}
}

func TestConsistencyFromDomain(t *testing.T) {
	report := &domain.ConsistencyReport{
		LedgerID:   "default",
		Checked:    3,
		Mismatches: 1,
		FirstMismatch: &domain.BalanceMismatch{
			EntryID:  "e2",
			Stored:   decimal.NewFromInt(10),
			Expected: decimal.NewFromInt(300),
		},
		FinalBalance: decimal.NewFromInt(-200),
	}

	resp := ConsistencyFromDomain(report)
	if resp.Consistent || resp.FirstMismatch == nil || resp.FirstMismatch.EntryID != "e2" {
		t.Fatalf("unexpected response %+v", resp)
	}

	resp = ConsistencyFromDomain(&domain.ConsistencyReport{LedgerID: "default"})
	if !resp.Consistent || resp.FirstMismatch != nil {
		t.Fatalf("expected consistent report, got %+v", resp)
	}
}

func TestExpenseFromDomain(t *testing.T) {
	tests := []struct {
		name  string
		entry *domain.Entry
		want  ExpenseRecord
	}{
		{
			name:  "income",
			entry: testEntry(domain.KindIncome, "500", "500"),
			want:  ExpenseRecord{ID: "e1", Date: "2025-01-02", Item: "Supplies", Income: "$500.00", Expense: "$0.00", Balance: "$500.00"},
		},
		{
			name:  "expense into negative",
			entry: testEntry(domain.KindExpense, "700", "-200"),
			want:  ExpenseRecord{ID: "e1", Date: "2025-01-02", Item: "Supplies", Income: "$0.00", Expense: "$700.00", Balance: "$-200.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpenseFromDomain(tt.entry, "$"); *got != tt.want {
				t.Fatalf("ExpenseFromDomain() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestTransactionFromDomain(t *testing.T) {
	data, err := json.Marshal(TransactionFromDomain(testEntry(domain.KindIncome, "1200.5", "1200.5")))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"_id":"e1","type":"income","amount":1200.50,"description":"Supplies","date":"2025-01-02","balance":1200.50}`
	if string(data) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", data, want)
	}
}
