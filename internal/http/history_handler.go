package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"corebank/internal/account"
	"corebank/internal/history"
	"corebank/internal/ledger"
)

type HistoryHandler struct {
	history  *history.Service
	accounts *account.Service
}

func NewHistoryHandler(historySvc *history.Service, accounts *account.Service) *HistoryHandler {
	return &HistoryHandler{history: historySvc, accounts: accounts}
}

// ListByAccount serves GET /accounts/{id}/transactions with optional type,
// from and to filters.
func (h *HistoryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := loadOwnedAccount(ctx, h.accounts, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	f.AccountID = acc.ID

	page, err := h.history.ListByFilters(ctx, f)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *HistoryHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	page, err := h.history.ListPending(ctx, f.Page, f.PageSize)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Get returns one transaction. Customers only see rows on their own accounts.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	txn, err := h.history.Get(ctx, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	if _, err := loadOwnedAccount(ctx, h.accounts, txn.AccountID); err != nil {
		respondError(w, ledger.ErrTransactionNotFound)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

func filterFromQuery(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	var f history.Filter

	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		return f, fmt.Errorf("%w: 'page' %v", ErrValidationFailed, err)
	}
	if f.PageSize, err = intParam(q.Get("page_size")); err != nil {
		return f, fmt.Errorf("%w: 'page_size' %v", ErrValidationFailed, err)
	}

	if v := q.Get("type"); v != "" {
		t := ledger.Type(v)
		f.Type = &t
	}
	if f.From, err = timeParam(q.Get("from"), false); err != nil {
		return f, fmt.Errorf("%w: 'from' %v", ErrValidationFailed, err)
	}
	if f.To, err = timeParam(q.Get("to"), true); err != nil {
		return f, fmt.Errorf("%w: 'to' %v", ErrValidationFailed, err)
	}

	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// timeParam accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func timeParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
