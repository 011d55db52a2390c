package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

const accountColumns = `id, account_number, user_id, account_type, balance, currency, status, created_at, updated_at`

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Insert(ctx context.Context, acc *Account) error {
	query := `
        INSERT INTO accounts (` + accountColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		acc.ID,
		acc.Number,
		acc.UserID,
		acc.Type,
		acc.Balance,
		acc.Currency,
		acc.Status,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

func (r *MySQLRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *MySQLRepository) GetByNumber(ctx context.Context, number string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = ?`
	return scanAccount(r.db.QueryRowContext(ctx, query, number))
}

func (r *MySQLRepository) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM accounts
        WHERE user_id = ?
        ORDER BY created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}

	return accounts, rows.Err()
}

func (r *MySQLRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	query := `
        UPDATE accounts
        SET status = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `

	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update status for account %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}

	return nil
}

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanAccount reads one row in accountColumns order. Other repositories that
// select accounts (the ledger's FOR UPDATE reads) share it.
func ScanAccount(row RowScanner) (*Account, error) {
	return scanAccount(row)
}

// Columns is the canonical select list for accounts.
func Columns() string {
	return accountColumns
}

func scanAccount(row RowScanner) (*Account, error) {
	var acc Account
	err := row.Scan(
		&acc.ID,
		&acc.Number,
		&acc.UserID,
		&acc.Type,
		&acc.Balance,
		&acc.Currency,
		&acc.Status,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &acc, nil
}
