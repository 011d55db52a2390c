package history

import (
	"context"

	"corebank/internal/ledger"
)

// Repository serves unlocked snapshot reads.
type Repository interface {
	// GetTransaction returns ledger.ErrTransactionNotFound for unknown ids.
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)

	// ListTransactions returns one page of matches, newest first, together
	// with the total number of matches. f is already normalized.
	ListTransactions(ctx context.Context, f Filter) ([]ledger.Transaction, int, error)
}
