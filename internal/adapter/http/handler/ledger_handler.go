package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashbook/internal/adapter/http/dto"
)

// LedgerHandler serves ledger-wide maintenance endpoints.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// List returns the IDs of ledgers holding entries.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ledgerUC.ListLedgers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, ids)
}

// Consistency verifies stored running balances.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.CheckConsistency(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.ConsistencyFromDomain(report))
}

// Recompute rewrites every running balance of the ledger.
func (h *LedgerHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledgerUC.Recompute(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.RecomputeFromUseCase(result))
}
