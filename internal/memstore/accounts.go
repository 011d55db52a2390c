package memstore

import (
	"context"
	"sort"
	"time"

	"corebank/internal/account"
)

func (s *Store) Insert(_ context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.numbers[acc.Number]; taken {
		return account.ErrDuplicateNumber
	}
	s.accounts[acc.ID] = *acc
	s.numbers[acc.Number] = acc.ID
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	s.mu.RLock()
	id, ok := s.numbers[number]
	s.mu.RUnlock()

	if !ok {
		return nil, account.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []account.Account
	for _, acc := range s.accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, from, to account.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	if acc.Status != from {
		return account.ErrStatusConflict
	}
	acc.Status = to
	acc.UpdatedAt = time.Now().UTC()
	s.accounts[id] = acc
	return nil
}
