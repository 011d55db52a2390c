package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert writes an event using the caller's transaction so the event commits
// or rolls back together with the ledger change it describes.
func Insert(ctx context.Context, exec Execer, e *Event) error {
	query := `
        INSERT INTO outbox_events (id, aggregate_id, event_type, payload, status, attempts, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	_, err := exec.ExecContext(ctx, query,
		e.ID,
		e.AggregateID,
		e.Type,
		e.Payload,
		e.Status,
		e.Attempts,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// FetchPending claims up to limit PENDING events, plus PROCESSING events whose
// claim expired before staleBefore, and stamps them PROCESSING with a fresh
// claimed_at. SKIP LOCKED lets several dispatchers share the table without
// double sends.
func (r *MySQLRepository) FetchPending(ctx context.Context, limit int, staleBefore time.Time) ([]*Event, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
        SELECT id, aggregate_id, event_type, payload, status, attempts, created_at
        FROM outbox_events
        WHERE status = ?
           OR (status = ? AND claimed_at < ?)
        ORDER BY created_at
        LIMIT ?
        FOR UPDATE SKIP LOCKED
    `, StatusPending, StatusProcessing, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending events: %w", err)
	}

	var (
		events []*Event
		ids    []any
	)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Type, &e.Payload, &e.Status, &e.Attempts, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
		ids = append(ids, e.ID)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	claimedAt := time.Now().UTC()
	for _, e := range events {
		e.Status = StatusProcessing
		e.ClaimedAt = &claimedAt
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := append([]any{StatusProcessing, claimedAt}, ids...)
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, claimed_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return events, nil
}

func (r *MySQLRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events SET status = ?, processed_at = ? WHERE id = ?
    `, StatusProcessed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", id, err)
	}
	return nil
}

// MarkForRetry counts the failed attempt and puts the event back in the
// queue, or parks it as FAILED once maxAttempts is reached.
func (r *MySQLRepository) MarkForRetry(ctx context.Context, id string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET attempts = attempts + 1,
            status = CASE WHEN attempts >= ? THEN ? ELSE ? END,
            claimed_at = NULL
        WHERE id = ?
    `, maxAttempts, StatusFailed, StatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to schedule retry for event %s: %w", id, err)
	}
	return nil
}

func (r *MySQLRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events SET status = ?, claimed_at = NULL WHERE id = ? AND status = ?
    `, StatusPending, id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to release event %s: %w", id, err)
	}
	return nil
}
