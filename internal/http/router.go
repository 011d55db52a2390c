package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"corebank/internal/account"
	"corebank/internal/audit"
	"corebank/internal/history"
	"corebank/internal/ledger"
	"corebank/internal/middleware"
	"corebank/internal/worker"
)

type Deps struct {
	Accounts *account.Service
	Ledger   *ledger.Service
	History  *history.Service
	Audit    audit.Repository
	Pool     *worker.Pool
	// Balances and DB are optional.
	Balances BalanceCache
	DB       Pinger
	Logger   *slog.Logger
}

// NewRouter builds the HTTP API. Health and metrics endpoints skip
// authentication; everything else requires a caller identity.
func NewRouter(d Deps) http.Handler {
	accounts := NewAccountHandler(d.Accounts, d.Balances)
	ledgerH := NewLedgerHandler(d.Ledger, d.Accounts, d.Pool)
	historyH := NewHistoryHandler(d.History, d.Accounts)
	auditH := NewAuditHandler(d.Audit)

	staff := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireStaff(h)
	}

	api := http.NewServeMux()

	api.HandleFunc("POST /accounts", accounts.Create)
	api.HandleFunc("GET /accounts", accounts.List)
	api.HandleFunc("GET /accounts/{id}", accounts.Get)
	api.HandleFunc("GET /accounts/{id}/balance", accounts.Balance)
	api.Handle("PATCH /accounts/{id}/status", staff(accounts.SetStatus))

	api.HandleFunc("POST /accounts/{id}/deposits", ledgerH.Deposit)
	api.HandleFunc("POST /accounts/{id}/withdrawals", ledgerH.Withdraw)
	api.HandleFunc("POST /accounts/{id}/card-payments", ledgerH.CardPayment)
	api.HandleFunc("POST /transfers", ledgerH.Transfer)
	api.Handle("POST /transactions/{id}/approve", staff(ledgerH.Approve))
	api.Handle("POST /transactions/{id}/reject", staff(ledgerH.Reject))

	api.HandleFunc("GET /accounts/{id}/transactions", historyH.ListByAccount)
	api.Handle("GET /transactions/pending", staff(historyH.ListPending))
	api.HandleFunc("GET /transactions/{id}", historyH.Get)

	api.Handle("GET /audit-logs", staff(auditH.Recent))

	root := http.NewServeMux()
	root.Handle("GET /health", NewHealthHandler(d.DB))
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", middleware.Authenticate(middleware.Metrics(api)))

	return middleware.RequestID(middleware.AccessLog(d.Logger)(root))
}
