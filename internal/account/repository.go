package account

import "context"

// Repository persists account records. It deliberately has no balance
// setter: balances change only inside a ledger unit of work.
type Repository interface {
	Insert(ctx context.Context, acc *Account) error

	GetByID(ctx context.Context, id string) (*Account, error)

	GetByNumber(ctx context.Context, number string) (*Account, error)

	ListByUser(ctx context.Context, userID string) ([]Account, error)

	// UpdateStatus moves the account from `from` to `to`, failing with
	// ErrStatusConflict when the stored status is no longer `from`.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
