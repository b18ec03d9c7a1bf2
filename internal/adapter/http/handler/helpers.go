package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

const maxBodyBytes = 1 << 20

// LedgerService defines the ledger engine behaviour the handlers need.
type LedgerService interface {
	ListAll(ctx context.Context, ledgerID string) ([]*domain.Entry, error)
	Add(ctx context.Context, input usecase.AddEntryInput) (*domain.Entry, error)
	Remove(ctx context.Context, ledgerID, id string) error
	Filter(ctx context.Context, ledgerID string, filter domain.EntryFilter) ([]*domain.Entry, error)
	Summary(ctx context.Context, ledgerID string, filter domain.EntryFilter) (domain.Summary, error)
	Recompute(ctx context.Context, ledgerID string) (*usecase.RecomputeResult, error)
	CheckConsistency(ctx context.Context, ledgerID string) (*domain.ConsistencyReport, error)
	ListLedgers(ctx context.Context) ([]string, error)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeData writes a successful envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.OK(data))
}

// writeError maps err to a status and writes a failed envelope. Storage
// and unexpected errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapDomainError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "internal error"
	}

	writeJSON(w, status, dto.Fail(message))
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v. Malformed bodies become
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %s", domain.ErrValidation, err.Error())
	}

	return nil
}

// filterFromQuery reads a filter from the query parameters named by keys.
func filterFromQuery(r *http.Request, startKey, endKey, kindKey string) (domain.EntryFilter, error) {
	q := r.URL.Query()

	return dto.FilterParams{
		Start: q.Get(startKey),
		End:   q.Get(endKey),
		Kind:  q.Get(kindKey),
	}.ToDomain()
}
