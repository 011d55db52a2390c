package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"corebank/internal/account"
	"corebank/internal/history"
	"corebank/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{ledger.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
	{ledger.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{ledger.ErrSourceNotFound, http.StatusNotFound, "source_not_found"},
	{ledger.ErrDestinationNotFound, http.StatusNotFound, "destination_not_found"},
	{ledger.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{account.ErrNotFound, http.StatusNotFound, "account_not_found"},
	{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{ledger.ErrStaleApproval, http.StatusUnprocessableEntity, "stale_approval"},
	{ledger.ErrAccountNotActive, http.StatusConflict, "account_not_active"},
	{ledger.ErrSourceInactive, http.StatusConflict, "source_inactive"},
	{ledger.ErrDestinationInactive, http.StatusConflict, "destination_inactive"},
	{ledger.ErrNotPending, http.StatusConflict, "not_pending"},
	{account.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{account.ErrStatusConflict, http.StatusConflict, "status_conflict"},
	{ledger.ErrSelfApproval, http.StatusForbidden, "self_approval"},
	{ledger.ErrInvalidCaller, http.StatusForbidden, "invalid_caller"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrInvalidType, http.StatusBadRequest, "invalid_type"},
	{ledger.ErrSameAccount, http.StatusBadRequest, "same_account"},
	{ledger.ErrCurrencyMismatch, http.StatusBadRequest, "currency_mismatch"},
	{account.ErrInvalidType, http.StatusBadRequest, "invalid_account_type"},
	{account.ErrInvalidUser, http.StatusBadRequest, "invalid_user"},
	{account.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency"},
	{account.ErrNumberExhausted, http.StatusServiceUnavailable, "number_exhausted"},
	{history.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{history.ErrInvalidType, http.StatusBadRequest, "invalid_type"},
	{history.ErrInvalidPage, http.StatusBadRequest, "invalid_page"},
	{ErrMalformedBody, http.StatusBadRequest, "malformed_body"},
	{ErrValidationFailed, http.StatusBadRequest, "validation_failed"},
	{ErrFieldRequired, http.StatusBadRequest, "validation_failed"},
	{ErrFieldPositiveAmount, http.StatusBadRequest, "validation_failed"},
	{ErrFieldOneOf, http.StatusBadRequest, "validation_failed"},
	{ErrFieldMaxLength, http.StatusBadRequest, "validation_failed"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout"},
}

// respondError translates domain errors into HTTP responses. Lock timeouts
// are retryable and say so.
func respondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			writeError(w, m.status, m.code, err)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
}
