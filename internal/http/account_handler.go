package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/cache"
	"corebank/internal/middleware"
)

const requestTimeout = 10 * time.Second

// BalanceCache is the display-balance snapshot store.
type BalanceCache interface {
	Get(ctx context.Context, accountID string) (cache.Snapshot, bool, error)
	BalanceChanged(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) error
}

type AccountHandler struct {
	accounts *account.Service
	cache    BalanceCache
}

// NewAccountHandler wires the account endpoints. balances may be nil.
func NewAccountHandler(accounts *account.Service, balances BalanceCache) *AccountHandler {
	return &AccountHandler{accounts: accounts, cache: balances}
}

type createAccountPayload struct {
	UserID   string `json:"user_id"`
	Type     string `json:"account_type" validate:"required,oneof=savings current"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=active suspended closed"`
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	AsOf      time.Time       `json:"as_of"`
	Source    string          `json:"source"`
}

// Create opens an account for the caller. Staff may open one for another user.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var payload createAccountPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respondError(w, err)
		return
	}

	caller, _ := middleware.GetIdentity(ctx)
	userID := caller.UserID
	if payload.UserID != "" && payload.UserID != caller.UserID {
		if !caller.IsStaff() {
			http.Error(w, "cannot open accounts for another user", http.StatusForbidden)
			return
		}
		userID = payload.UserID
	}

	acc, err := h.accounts.Create(ctx, account.CreateRequest{
		UserID:   userID,
		Type:     account.Type(payload.Type),
		Currency: payload.Currency,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, acc)
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, _ := middleware.GetIdentity(ctx)
	userID := caller.UserID
	if q := r.URL.Query().Get("user_id"); q != "" && caller.IsStaff() {
		userID = q
	}

	accounts, err := h.accounts.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []account.Account{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := loadOwnedAccount(ctx, h.accounts, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// Balance serves the display balance, preferring the cached snapshot.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	acc, err := loadOwnedAccount(ctx, h.accounts, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	if h.cache != nil {
		if snap, ok, err := h.cache.Get(ctx, acc.ID); err == nil && ok {
			writeJSON(w, http.StatusOK, balanceResponse{
				AccountID: acc.ID,
				Balance:   snap.Balance,
				Currency:  acc.Currency,
				AsOf:      snap.AsOf,
				Source:    "cache",
			})
			return
		}
		_ = h.cache.BalanceChanged(ctx, acc.ID, acc.Balance, acc.UpdatedAt)
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: acc.ID,
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		AsOf:      acc.UpdatedAt,
		Source:    "store",
	})
}

// SetStatus is the staff-only administrative status change.
func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var payload statusPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respondError(w, err)
		return
	}

	acc, err := h.accounts.SetStatus(ctx, r.PathValue("id"), account.Status(payload.Status))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// loadOwnedAccount hides accounts the caller does not own behind NotFound.
func loadOwnedAccount(ctx context.Context, accounts *account.Service, id string) (*account.Account, error) {
	acc, err := accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	caller, _ := middleware.GetIdentity(ctx)
	if !caller.IsStaff() && acc.UserID != caller.UserID {
		return nil, account.ErrNotFound
	}
	return acc, nil
}
