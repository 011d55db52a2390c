package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Log(ctx context.Context, entry *AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO audit_logs (request_id, action, status, actor, account_id, transaction_id, message, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.Action,
		entry.Status,
		entry.Actor,
		entry.AccountID,
		entry.TransactionID,
		entry.Message,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted audit log id: %w", err)
	}
	entry.ID = uint64(id)

	return nil
}

func (r *MySQLRepository) ListByRequest(ctx context.Context, requestID string) ([]AuditLog, error) {
	query := `
        SELECT id, request_id, action, status, actor, account_id, transaction_id, message, created_at
        FROM audit_logs
        WHERE request_id = ?
        ORDER BY id ASC
    `
	return r.query(ctx, query, requestID)
}

func (r *MySQLRepository) GetRecentAuditLogs(ctx context.Context, limit int) ([]AuditLog, error) {
	query := `
        SELECT id, request_id, action, status, actor, account_id, transaction_id, message, created_at
        FROM audit_logs
        ORDER BY id DESC
        LIMIT ?
    `
	return r.query(ctx, query, limit)
}

func (r *MySQLRepository) query(ctx context.Context, query string, args ...any) ([]AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var (
			entry   AuditLog
			message sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Action,
			&entry.Status,
			&entry.Actor,
			&entry.AccountID,
			&entry.TransactionID,
			&message,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if message.Valid {
			entry.Message = &message.String
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
