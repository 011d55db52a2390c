package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"corebank/internal/account"
	"corebank/internal/outbox"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

const transactionColumns = `id, reference, request_id, account_id, txn_type, amount,
        balance_before, balance_after, status, description, recipient_account_id,
        recipient_name, counterpart_id, requires_approval, initiated_by,
        approved_by, approved_at, created_at, updated_at`

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &mysqlTx{tx: tx}, nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error) {
	query := `SELECT ` + account.Columns() + ` FROM accounts WHERE id = ? FOR UPDATE`

	acc, err := account.ScanAccount(t.tx.QueryRowContext(ctx, query, accountID))
	if err != nil {
		return nil, lockError(err)
	}
	return acc, nil
}

func (t *mysqlTx) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) error {
	query := `
        UPDATE accounts
        SET balance = ?, updated_at = ?
        WHERE id = ?
    `

	_, err := t.tx.ExecContext(ctx, query, balance, at, accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %s: %w", accountID, lockError(err))
	}

	return nil
}

func (t *mysqlTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.tx.ExecContext(ctx, query,
		txn.ID,
		txn.Reference,
		txn.RequestID,
		txn.AccountID,
		txn.Type,
		txn.Amount,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.Status,
		txn.Description,
		txn.RecipientAccountID,
		txn.RecipientName,
		txn.CounterpartID,
		txn.RequiresApproval,
		txn.InitiatedBy,
		txn.ApprovedBy,
		txn.ApprovedAt,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", lockError(err))
	}

	return nil
}

func (t *mysqlTx) GetTransactionForUpdate(ctx context.Context, txnID string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? FOR UPDATE`

	txn, err := ScanTransaction(t.tx.QueryRowContext(ctx, query, txnID))
	if err != nil {
		return nil, lockError(err)
	}
	return txn, nil
}

func (t *mysqlTx) UpdateTransaction(ctx context.Context, txn *Transaction) error {
	query := `
        UPDATE transactions
        SET status = ?, balance_before = ?, balance_after = ?,
            approved_by = ?, approved_at = ?, updated_at = ?
        WHERE id = ?
    `

	_, err := t.tx.ExecContext(ctx, query,
		txn.Status,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.ApprovedBy,
		txn.ApprovedAt,
		txn.UpdatedAt,
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, lockError(err))
	}

	return nil
}

func (t *mysqlTx) InsertEvent(ctx context.Context, event *outbox.Event) error {
	return outbox.Insert(ctx, t.tx, event)
}

func (t *mysqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *mysqlTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// lockError maps InnoDB lock wait timeouts and deadlock victims to
// ErrLockTimeout. Both leave the caller free to retry.
func lockError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, myErr.Message)
	}
	return err
}

// TransactionColumns is the canonical select list for transactions.
func TransactionColumns() string {
	return transactionColumns
}

// ScanTransaction reads one row in TransactionColumns order.
func ScanTransaction(row account.RowScanner) (*Transaction, error) {
	var (
		txn         Transaction
		recipientID sql.NullString
		recipient   sql.NullString
		counterpart sql.NullString
		approvedBy  sql.NullString
		approvedAt  sql.NullTime
	)

	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.RequestID,
		&txn.AccountID,
		&txn.Type,
		&txn.Amount,
		&txn.BalanceBefore,
		&txn.BalanceAfter,
		&txn.Status,
		&txn.Description,
		&recipientID,
		&recipient,
		&counterpart,
		&txn.RequiresApproval,
		&txn.InitiatedBy,
		&approvedBy,
		&approvedAt,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.RecipientAccountID = nullStringToPtr(recipientID)
	txn.RecipientName = nullStringToPtr(recipient)
	txn.CounterpartID = nullStringToPtr(counterpart)
	txn.ApprovedBy = nullStringToPtr(approvedBy)
	if approvedAt.Valid {
		at := approvedAt.Time
		txn.ApprovedAt = &at
	}

	return &txn, nil
}

func nullStringToPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}
