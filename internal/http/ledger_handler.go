package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/ledger"
	"corebank/internal/middleware"
	"corebank/internal/worker"
)

var errQueueFull = errors.New("ledger is busy, retry later")

type LedgerHandler struct {
	ledger   *ledger.Service
	accounts *account.Service
	pool     *worker.Pool
}

func NewLedgerHandler(ledgerSvc *ledger.Service, accounts *account.Service, pool *worker.Pool) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledgerSvc,
		accounts: accounts,
		pool:     pool,
	}
}

type entryPayload struct {
	Amount      string `json:"amount" validate:"required,positive_amount"`
	Description string `json:"description" validate:"max=255"`
}

type transferPayload struct {
	FromAccountID   string `json:"from_account_id" validate:"required"`
	ToAccountNumber string `json:"to_account_number" validate:"required,max=20"`
	Amount          string `json:"amount" validate:"required,positive_amount"`
	RecipientName   string `json:"recipient_name" validate:"max=100"`
	Description     string `json:"description" validate:"max=255"`
}

func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.singleEntry(w, r, ledger.TypeDeposit)
}

func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.singleEntry(w, r, ledger.TypeWithdrawal)
}

func (h *LedgerHandler) CardPayment(w http.ResponseWriter, r *http.Request) {
	h.singleEntry(w, r, ledger.TypeCardPayment)
}

func (h *LedgerHandler) singleEntry(w http.ResponseWriter, r *http.Request, txnType ledger.Type) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var payload entryPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respondError(w, err)
		return
	}

	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		respondError(w, ledger.ErrInvalidAmount)
		return
	}

	acc, err := loadOwnedAccount(ctx, h.accounts, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	caller, _ := middleware.GetIdentity(ctx)
	requestID := middleware.GetRequestID(ctx)

	var txn *ledger.Transaction
	err = h.run(ctx, requestID, string(txnType), func(ctx context.Context) error {
		var err error
		txn, err = h.ledger.RecordSingleEntry(ctx, ledger.EntryRequest{
			RequestID:   requestID,
			AccountID:   acc.ID,
			Type:        txnType,
			Amount:      amount,
			Description: payload.Description,
			InitiatedBy: caller.UserID,
		})
		return err
	})
	if err != nil {
		respondJobError(w, err)
		return
	}

	status := http.StatusCreated
	if txn.Status == ledger.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, txn)
}

// Transfer resolves the destination by account number and moves the money
// from one of the caller's accounts.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var payload transferPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respondError(w, err)
		return
	}

	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		respondError(w, ledger.ErrInvalidAmount)
		return
	}

	from, err := loadOwnedAccount(ctx, h.accounts, payload.FromAccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			err = ledger.ErrSourceNotFound
		}
		respondError(w, err)
		return
	}

	to, err := h.accounts.GetByNumber(ctx, payload.ToAccountNumber)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			err = ledger.ErrDestinationNotFound
		}
		respondError(w, err)
		return
	}

	caller, _ := middleware.GetIdentity(ctx)
	requestID := middleware.GetRequestID(ctx)

	var res *ledger.TransferResult
	err = h.run(ctx, requestID, "transfer", func(ctx context.Context) error {
		var err error
		res, err = h.ledger.Transfer(ctx, ledger.TransferRequest{
			RequestID:     requestID,
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        amount,
			Description:   payload.Description,
			RecipientName: payload.RecipientName,
			InitiatedBy:   caller.UserID,
		})
		return err
	})
	if err != nil {
		respondJobError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve", h.ledger.Approve)
}

func (h *LedgerHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject", h.ledger.Reject)
}

type reviewFunc func(ctx context.Context, req ledger.ReviewRequest) (*ledger.Transaction, error)

func (h *LedgerHandler) review(w http.ResponseWriter, r *http.Request, name string, fn reviewFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, _ := middleware.GetIdentity(ctx)
	req := ledger.ReviewRequest{
		RequestID:     middleware.GetRequestID(ctx),
		TransactionID: r.PathValue("id"),
		ApproverID:    caller.UserID,
	}

	var txn *ledger.Transaction
	err := h.run(ctx, req.RequestID, name, func(ctx context.Context) error {
		var err error
		txn, err = fn(ctx, req)
		return err
	})
	if err != nil {
		respondJobError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

// run executes fn on the worker pool and waits for it.
func (h *LedgerHandler) run(ctx context.Context, requestID, name string, fn func(ctx context.Context) error) error {
	job := worker.NewJob(ctx, requestID, name, fn)
	if !h.pool.Submit(job) {
		return errQueueFull
	}
	return job.Wait(ctx)
}

func respondJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, errQueueFull) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "queue_full", err)
		return
	}
	respondError(w, err)
}
