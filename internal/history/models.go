package history

import (
	"math"
	"time"

	"corebank/internal/audit"
	"corebank/internal/ledger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Cursor is a position in the newest-first listing order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor that resumes a listing after txn.
func CursorAfter(txn ledger.Transaction) *Cursor {
	return &Cursor{CreatedAt: txn.CreatedAt, ID: txn.ID}
}

// Filter selects transactions. Zero values mean "any"; From and To are
// inclusive bounds on the creation time. Before keeps only rows that sort
// after the cursor, i.e. older ones.
type Filter struct {
	AccountID string
	Type      *ledger.Type
	Status    *ledger.Status
	From      *time.Time
	To        *time.Time
	Before    *Cursor
	Page      int
	PageSize  int
}

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped before the requested page.
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether txn passes every set criterion. Repositories that
// filter in memory use it; SQL repositories translate the same rules.
func (f Filter) Matches(txn *ledger.Transaction) bool {
	if f.AccountID != "" && txn.AccountID != f.AccountID {
		return false
	}
	if f.Type != nil && txn.Type != *f.Type {
		return false
	}
	if f.Status != nil && txn.Status != *f.Status {
		return false
	}
	if f.From != nil && txn.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && txn.CreatedAt.After(*f.To) {
		return false
	}
	if f.Before != nil && !f.Before.precedes(txn) {
		return false
	}
	return true
}

func (c *Cursor) precedes(txn *ledger.Transaction) bool {
	if txn.CreatedAt.Equal(c.CreatedAt) {
		return txn.ID < c.ID
	}
	return txn.CreatedAt.Before(c.CreatedAt)
}

type Page struct {
	Items      []ledger.Transaction `json:"items"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// StatementLine pairs a transaction with the audit trail of the request
// that produced it.
type StatementLine struct {
	Transaction ledger.Transaction `json:"transaction"`
	AuditLogs   []audit.AuditLog   `json:"audit_logs,omitempty"`
}
