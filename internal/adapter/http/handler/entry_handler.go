package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashbook/internal/adapter/http/dto"
)

// EntryHandler serves the entries of a ledger under /api/v1/ledgers.
type EntryHandler struct {
	ledgerUC LedgerService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(ledgerUC LedgerService) *EntryHandler {
	return &EntryHandler{ledgerUC: ledgerUC}
}

// List lists the ledger's entries, most recent first. start, end and kind
// query parameters narrow the listing.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	ledgerID := chi.URLParam(r, "ledgerID")

	filter, err := filterFromQuery(r, "start", "end", "kind")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.ledgerUC.Filter(r.Context(), ledgerID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Create adds an entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AddEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "ledgerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.ledgerUC.Add(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Delete removes an entry.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.ledgerUC.Remove(r.Context(), chi.URLParam(r, "ledgerID"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// Summary returns the totals of the ledger's matching entries.
func (h *EntryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r, "start", "end", "kind")
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.ledgerUC.Summary(r.Context(), chi.URLParam(r, "ledgerID"), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.SummaryFromDomain(summary))
}
