// Package memstore is the in-process storage backend. It implements the
// account, ledger, history, audit and outbox repositories over maps guarded
// by one mutex, with per-row locks standing in for SELECT ... FOR UPDATE.
package memstore

import (
	"sync"
	"time"

	"corebank/internal/account"
	"corebank/internal/audit"
	"corebank/internal/ledger"
	"corebank/internal/outbox"
)

const defaultLockTimeout = 5 * time.Second

type Store struct {
	mu sync.RWMutex

	accounts map[string]account.Account
	numbers  map[string]string

	txns map[string]ledger.Transaction

	audits []audit.AuditLog

	events     map[string]*outbox.Event
	eventOrder []string

	locks       *lockTable
	lockTimeout time.Duration
}

type Option func(*Store)

// WithLockTimeout bounds how long a unit of work waits for a row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts:    make(map[string]account.Account),
		numbers:     make(map[string]string),
		txns:        make(map[string]ledger.Transaction),
		events:      make(map[string]*outbox.Event),
		locks:       newLockTable(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
