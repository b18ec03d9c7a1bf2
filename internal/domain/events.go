package domain

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeEntryAdded       = "entry.added"
	EventTypeEntryRemoved     = "entry.removed"
	EventTypeLedgerRecomputed = "ledger.recomputed"
)

// LedgerEvent is emitted after a ledger mutation has been committed.
type LedgerEvent struct {
	OccurredAt time.Time
	Payload    map[string]any
	ID         string
	Type       string
	LedgerID   string
}

// EntryAddedEvent payload
type EntryAddedEvent struct {
	EntryID        string `json:"entry_id"`
	OccurredOn     string `json:"occurred_on"`
	Kind           string `json:"kind"`
	Amount         string `json:"amount"`
	RunningBalance string `json:"running_balance"`
	Recomputed     int    `json:"recomputed"`
}

// EntryRemovedEvent payload
type EntryRemovedEvent struct {
	EntryID    string `json:"entry_id"`
	Recomputed int    `json:"recomputed"`
}

// LedgerRecomputedEvent payload
type LedgerRecomputedEvent struct {
	Entries int `json:"entries"`
	Changed int `json:"changed"`
}

// ToPayload converts a typed event payload into its generic form.
func ToPayload(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": "failed to marshal payload"}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{"error": "failed to unmarshal payload"}
	}

	return result
}
