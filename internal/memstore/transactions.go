package memstore

import (
	"context"
	"sort"

	"corebank/internal/history"
	"corebank/internal/ledger"
)

func (s *Store) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.txns[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	txn := cloneTransaction(stored)
	return &txn, nil
}

// ListTransactions orders by created_at then id, both descending, the same
// order the MySQL repository uses, so keyset cursors mean the same thing.
func (s *Store) ListTransactions(_ context.Context, f history.Filter) ([]ledger.Transaction, int, error) {
	s.mu.RLock()
	matches := make([]ledger.Transaction, 0)
	for _, txn := range s.txns {
		if f.Matches(&txn) {
			matches = append(matches, txn)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := len(matches)
	start := f.Offset()
	if start < 0 || start >= total {
		return nil, total, nil
	}
	end := min(start+f.PageSize, total)

	out := make([]ledger.Transaction, 0, end-start)
	for _, txn := range matches[start:end] {
		out = append(out, cloneTransaction(txn))
	}
	return out, total, nil
}
