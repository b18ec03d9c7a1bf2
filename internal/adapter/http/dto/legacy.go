package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
)

// ExpenseRecord is an entry in the /api/expenses representation, where
// every amount is a currency-prefixed string.
type ExpenseRecord struct {
	ID      string `json:"_id"`
	Date    string `json:"date"`
	Item    string `json:"item"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

// ExpenseFromDomain converts an entry, formatting amounts with glyph.
func ExpenseFromDomain(e *domain.Entry, glyph string) *ExpenseRecord {
	income, expense := decimal.Zero, decimal.Zero
	if e.Kind == domain.KindIncome {
		income = e.Amount
	} else {
		expense = e.Amount
	}

	return &ExpenseRecord{
		ID:      e.ID,
		Date:    dateString(e.OccurredOn),
		Item:    e.Label,
		Income:  domain.FormatAmount(income, glyph),
		Expense: domain.FormatAmount(expense, glyph),
		Balance: domain.FormatAmount(e.RunningBalance, glyph),
	}
}

// ExpensesFromDomain converts entries to expense records.
func ExpensesFromDomain(entries []*domain.Entry, glyph string) []*ExpenseRecord {
	result := make([]*ExpenseRecord, len(entries))
	for i, e := range entries {
		result[i] = ExpenseFromDomain(e, glyph)
	}
	return result
}

// TransactionRecord is an entry in the /api/transactions representation,
// with plain numeric amounts.
type TransactionRecord struct {
	ID          string `json:"_id"`
	Type        string `json:"type"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Balance     Amount `json:"balance"`
}

// TransactionFromDomain converts an entry to a transaction record.
func TransactionFromDomain(e *domain.Entry) *TransactionRecord {
	return &TransactionRecord{
		ID:          e.ID,
		Type:        string(e.Kind),
		Amount:      NewAmount(e.Amount),
		Description: e.Label,
		Date:        dateString(e.OccurredOn),
		Balance:     NewAmount(e.RunningBalance),
	}
}

// TransactionsFromDomain converts entries to transaction records.
func TransactionsFromDomain(entries []*domain.Entry) []*TransactionRecord {
	result := make([]*TransactionRecord, len(entries))
	for i, e := range entries {
		result[i] = TransactionFromDomain(e)
	}
	return result
}

// TransactionSummary is the /api/transactions/summary body.
type TransactionSummary struct {
	TotalIncome  Amount `json:"totalIncome"`
	TotalExpense Amount `json:"totalExpense"`
	Balance      Amount `json:"balance"`
	Average      Amount `json:"average"`
	Count        int    `json:"count"`
}

// TransactionSummaryFromDomain converts a summary.
func TransactionSummaryFromDomain(s domain.Summary) *TransactionSummary {
	return &TransactionSummary{
		TotalIncome:  NewAmount(s.TotalIncome),
		TotalExpense: NewAmount(s.TotalExpense),
		Balance:      NewAmount(s.NetBalance),
		Average:      NewAmount(s.Average.Round(domain.AmountScale)),
		Count:        s.Count,
	}
}
