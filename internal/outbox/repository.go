package outbox

import (
	"context"
	"time"
)

type Repository interface {
	// FetchPending claims up to limit pending events, marking them PROCESSING.
	// Events still PROCESSING whose claim is older than staleBefore are
	// claimed again: their dispatcher died or lost its database connection.
	FetchPending(ctx context.Context, limit int, staleBefore time.Time) ([]*Event, error)

	MarkProcessed(ctx context.Context, id string) error

	// MarkForRetry returns the event to PENDING, or FAILED once attempts
	// reaches maxAttempts.
	MarkForRetry(ctx context.Context, id string, maxAttempts int) error

	// Release returns a claimed event to PENDING without counting an attempt.
	Release(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
