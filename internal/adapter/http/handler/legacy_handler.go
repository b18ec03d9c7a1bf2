package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/domain"
)

// ExpenseHandler serves /api/expenses on the default ledger, rendering
// amounts as currency strings.
type ExpenseHandler struct {
	ledgerUC LedgerService
	ledgerID string
	glyph    string
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(ledgerUC LedgerService, ledgerID, glyph string) *ExpenseHandler {
	return &ExpenseHandler{ledgerUC: ledgerUC, ledgerID: ledgerID, glyph: glyph}
}

// List lists every expense record, most recent first.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledgerUC.ListAll(r.Context(), h.ledgerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.ExpensesFromDomain(entries, h.glyph))
}

// Create records an expense or income.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(h.ledgerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.ledgerUC.Add(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, dto.ExpenseFromDomain(entry, h.glyph))
}

// Delete removes a record.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerUC.Remove(r.Context(), h.ledgerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// TransactionHandler serves /api/transactions on the default ledger with
// plain numeric amounts.
type TransactionHandler struct {
	ledgerUC LedgerService
	ledgerID string
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerUC LedgerService, ledgerID string) *TransactionHandler {
	return &TransactionHandler{ledgerUC: ledgerUC, ledgerID: ledgerID}
}

// List lists every transaction, most recent first.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledgerUC.ListAll(r.Context(), h.ledgerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.TransactionsFromDomain(entries))
}

// Create records a transaction.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(h.ledgerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.ledgerUC.Add(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, dto.TransactionFromDomain(entry))
}

// Delete removes a transaction.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerUC.Remove(r.Context(), h.ledgerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// Summary totals every transaction of the ledger.
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledgerUC.Summary(r.Context(), h.ledgerID, domain.EntryFilter{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.TransactionSummaryFromDomain(summary))
}

// Search filters transactions by startDate, endDate and type.
func (h *TransactionHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r, "startDate", "endDate", "type")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.ledgerUC.Filter(r.Context(), h.ledgerID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, dto.TransactionsFromDomain(entries))
}
