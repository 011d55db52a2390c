package memstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/ledger"
	"corebank/internal/outbox"
)

var errTxDone = errors.New("memstore: transaction already committed or rolled back")

type balanceWrite struct {
	balance decimal.Decimal
	at      time.Time
}

// tx buffers writes and applies them in one critical section on Commit.
// Row locks taken by the ForUpdate reads are held until the tx ends.
type tx struct {
	store *Store
	held  []string
	done  bool

	balances map[string]balanceWrite
	inserts  []ledger.Transaction
	updates  map[string]ledger.Transaction
	events   []*outbox.Event
}

func (s *Store) BeginTx(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		store:    s,
		balances: make(map[string]balanceWrite),
		updates:  make(map[string]ledger.Transaction),
	}, nil
}

func (t *tx) lock(ctx context.Context, key string) error {
	if t.done {
		return errTxDone
	}
	for _, h := range t.held {
		if h == key {
			return nil
		}
	}
	if err := t.store.locks.acquire(ctx, key, t.store.lockTimeout); err != nil {
		return err
	}
	t.held = append(t.held, key)
	return nil
}

func (t *tx) GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error) {
	if err := t.lock(ctx, "account:"+accountID); err != nil {
		return nil, err
	}

	t.store.mu.RLock()
	acc, ok := t.store.accounts[accountID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, account.ErrNotFound
	}

	if w, ok := t.balances[accountID]; ok {
		acc.Balance = w.balance
		acc.UpdatedAt = w.at
	}
	return &acc, nil
}

func (t *tx) UpdateAccountBalance(_ context.Context, accountID string, balance decimal.Decimal, at time.Time) error {
	if t.done {
		return errTxDone
	}
	t.balances[accountID] = balanceWrite{balance: balance, at: at}
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, txn *ledger.Transaction) error {
	if t.done {
		return errTxDone
	}
	t.inserts = append(t.inserts, cloneTransaction(*txn))
	return nil
}

func (t *tx) GetTransactionForUpdate(ctx context.Context, txnID string) (*ledger.Transaction, error) {
	if err := t.lock(ctx, "txn:"+txnID); err != nil {
		return nil, err
	}

	if txn, ok := t.updates[txnID]; ok {
		cp := cloneTransaction(txn)
		return &cp, nil
	}

	t.store.mu.RLock()
	stored, ok := t.store.txns[txnID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}

	cp := cloneTransaction(stored)
	return &cp, nil
}

func (t *tx) UpdateTransaction(_ context.Context, txn *ledger.Transaction) error {
	if t.done {
		return errTxDone
	}
	t.updates[txn.ID] = cloneTransaction(*txn)
	return nil
}

func (t *tx) InsertEvent(_ context.Context, event *outbox.Event) error {
	if t.done {
		return errTxDone
	}
	cp := *event
	t.events = append(t.events, &cp)
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}

	s := t.store
	s.mu.Lock()
	for id, w := range t.balances {
		acc, ok := s.accounts[id]
		if !ok {
			continue
		}
		acc.Balance = w.balance
		acc.UpdatedAt = w.at
		s.accounts[id] = acc
	}
	for _, txn := range t.inserts {
		s.txns[txn.ID] = txn
	}
	for id, txn := range t.updates {
		if _, ok := s.txns[id]; !ok {
			continue
		}
		s.txns[id] = txn
	}
	for _, e := range t.events {
		s.events[e.ID] = e
		s.eventOrder = append(s.eventOrder, e.ID)
	}
	s.mu.Unlock()

	t.finish()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.locks.release(t.held[i])
	}
	t.held = nil
}

func cloneTransaction(txn ledger.Transaction) ledger.Transaction {
	txn.RecipientAccountID = cloneString(txn.RecipientAccountID)
	txn.RecipientName = cloneString(txn.RecipientName)
	txn.CounterpartID = cloneString(txn.CounterpartID)
	txn.ApprovedBy = cloneString(txn.ApprovedBy)
	if txn.ApprovedAt != nil {
		at := *txn.ApprovedAt
		txn.ApprovedAt = &at
	}
	return txn
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
