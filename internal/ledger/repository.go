package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/outbox"
)

// Repository opens units of work. Everything a ledger operation reads or
// writes goes through one Tx, which either commits as a whole or leaves no
// trace.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit. The ForUpdate reads take an exclusive lock held
// until Commit or Rollback; a lock that cannot be taken in time fails with
// ErrLockTimeout. Rollback after Commit is a no-op.
type Tx interface {
	// GetAccountForUpdate returns account.ErrNotFound for unknown ids.
	GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error)

	UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) error

	InsertTransaction(ctx context.Context, txn *Transaction) error

	GetTransactionForUpdate(ctx context.Context, txnID string) (*Transaction, error)

	// UpdateTransaction persists the review fields and balance snapshots of
	// a previously pending row.
	UpdateTransaction(ctx context.Context, txn *Transaction) error

	InsertEvent(ctx context.Context, event *outbox.Event) error

	Commit() error
	Rollback() error
}

// BalanceObserver is told about committed balance changes. Failures are
// logged and never affect the operation.
type BalanceObserver interface {
	BalanceChanged(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) error
}
