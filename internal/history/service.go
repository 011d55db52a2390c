package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"corebank/internal/audit"
	"corebank/internal/ledger"
)

var (
	ErrInvalidRange = errors.New("date range start is after its end")
	ErrInvalidType  = errors.New("unknown transaction type")
	ErrInvalidPage  = errors.New("page number out of range")
)

type Service struct {
	repo      Repository
	auditRepo audit.Repository
	logger    *slog.Logger
}

func NewService(repo Repository, auditRepo audit.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*ledger.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID string, page, pageSize int) (*Page, error) {
	return s.ListByFilters(ctx, Filter{AccountID: accountID, Page: page, PageSize: pageSize})
}

func (s *Service) ListPending(ctx context.Context, page, pageSize int) (*Page, error) {
	pending := ledger.StatusPending
	return s.ListByFilters(ctx, Filter{Status: &pending, Page: page, PageSize: pageSize})
}

func (s *Service) ListByFilters(ctx context.Context, f Filter) (*Page, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, ErrInvalidType
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, ErrInvalidRange
	}

	f = f.normalized()
	if f.Page > math.MaxInt/f.PageSize {
		return nil, ErrInvalidPage
	}

	items, total, err := s.repo.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if items == nil {
		items = []ledger.Transaction{}
	}

	return &Page{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: (total + f.PageSize - 1) / f.PageSize,
	}, nil
}

// Statement walks every transaction of an account, newest first, and
// attaches the audit entries of the request behind each one. It pages by
// keyset so rows committed while it runs cannot shift a page and repeat a line.
func (s *Service) Statement(ctx context.Context, accountID string) ([]StatementLine, error) {
	var lines []StatementLine
	auditCache := make(map[string][]audit.AuditLog)

	var cursor *Cursor
	for {
		p, err := s.ListByFilters(ctx, Filter{AccountID: accountID, Before: cursor, PageSize: MaxPageSize})
		if err != nil {
			return nil, err
		}

		for _, txn := range p.Items {
			line := StatementLine{Transaction: txn}
			if s.auditRepo != nil && txn.RequestID != "" {
				logs, ok := auditCache[txn.RequestID]
				if !ok {
					logs, err = s.auditRepo.ListByRequest(ctx, txn.RequestID)
					if err != nil {
						return nil, fmt.Errorf("audit trail for %s: %w", txn.ID, err)
					}
					auditCache[txn.RequestID] = logs
				}
				line.AuditLogs = logs
			}
			lines = append(lines, line)
		}

		if len(p.Items) < p.PageSize {
			break
		}
		cursor = CursorAfter(p.Items[len(p.Items)-1])
	}

	s.logger.Debug("statement built", "account_id", accountID, "rows", len(lines))
	return lines, nil
}
