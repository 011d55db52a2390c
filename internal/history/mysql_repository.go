package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"corebank/internal/ledger"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `SELECT ` + ledger.TransactionColumns() + ` FROM transactions WHERE id = ?`
	return ledger.ScanTransaction(r.db.QueryRowContext(ctx, query, id))
}

func (r *MySQLRepository) ListTransactions(ctx context.Context, f Filter) ([]ledger.Transaction, int, error) {
	where, args := whereClause(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT ` + ledger.TransactionColumns() + ` FROM transactions` + where + `
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		txn, err := ledger.ScanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *txn)
	}

	return txns, total, rows.Err()
}

func whereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Type != nil {
		conds = append(conds, "txn_type = ?")
		args = append(args, *f.Type)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *f.To)
	}
	if f.Before != nil {
		conds = append(conds, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.Before.CreatedAt, f.Before.CreatedAt, f.Before.ID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
