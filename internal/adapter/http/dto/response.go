package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// Envelope wraps every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail builds an error envelope.
func Fail(message string) Envelope {
	return Envelope{Success: false, Data: nil, Message: message}
}

// Money renders a decimal with two fraction digits, as a JSON string.
type Money decimal.Decimal

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + decimal.Decimal(m).StringFixed(domain.AmountScale) + `"`), nil
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID             string    `json:"id"`
	LedgerID       string    `json:"ledger_id"`
	Seq            int64     `json:"seq"`
	OccurredOn     string    `json:"occurred_on"`
	Label          string    `json:"label"`
	Kind           string    `json:"kind"`
	Amount         Money     `json:"amount"`
	RunningBalance Money     `json:"running_balance"`
	CreatedAt      time.Time `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:             e.ID,
		LedgerID:       e.LedgerID,
		Seq:            e.Seq,
		OccurredOn:     dateString(e.OccurredOn),
		Label:          e.Label,
		Kind:           string(e.Kind),
		Amount:         Money(e.Amount),
		RunningBalance: Money(e.RunningBalance),
		CreatedAt:      e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// SummaryResponse represents ledger totals.
type SummaryResponse struct {
	TotalIncome  Money `json:"total_income"`
	TotalExpense Money `json:"total_expense"`
	NetBalance   Money `json:"net_balance"`
	Average      Money `json:"average"`
	Count        int   `json:"count"`
}

// SummaryFromDomain converts a summary to response.
func SummaryFromDomain(s domain.Summary) *SummaryResponse {
	return &SummaryResponse{
		TotalIncome:  Money(s.TotalIncome),
		TotalExpense: Money(s.TotalExpense),
		NetBalance:   Money(s.NetBalance),
		Average:      Money(s.Average.Round(domain.AmountScale)),
		Count:        s.Count,
	}
}

// MismatchResponse describes the first entry with a wrong balance.
type MismatchResponse struct {
	EntryID  string `json:"entry_id"`
	Stored   Money  `json:"stored"`
	Expected Money  `json:"expected"`
}

// ConsistencyResponse represents a balance verification.
type ConsistencyResponse struct {
	LedgerID      string            `json:"ledger_id"`
	Consistent    bool              `json:"consistent"`
	Checked       int               `json:"checked"`
	Mismatches    int               `json:"mismatches"`
	FirstMismatch *MismatchResponse `json:"first_mismatch,omitempty"`
	FinalBalance  Money             `json:"final_balance"`
}

// ConsistencyFromDomain converts a report to response.
func ConsistencyFromDomain(r *domain.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		LedgerID:     r.LedgerID,
		Consistent:   r.Consistent(),
		Checked:      r.Checked,
		Mismatches:   r.Mismatches,
		FinalBalance: Money(r.FinalBalance),
	}
	if m := r.FirstMismatch; m != nil {
		resp.FirstMismatch = &MismatchResponse{
			EntryID:  m.EntryID,
			Stored:   Money(m.Stored),
			Expected: Money(m.Expected),
		}
	}
	return resp
}

// RecomputeResponse represents a recompute pass.
type RecomputeResponse struct {
	LedgerID string `json:"ledger_id"`
	Entries  int    `json:"entries"`
	Changed  int    `json:"changed"`
}

// RecomputeFromUseCase converts a recompute result to response.
func RecomputeFromUseCase(r *usecase.RecomputeResult) *RecomputeResponse {
	return &RecomputeResponse{LedgerID: r.LedgerID, Entries: r.Entries, Changed: r.Changed}
}
