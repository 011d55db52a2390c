package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultBatchSize      = 50
	defaultInterval       = 500 * time.Millisecond
	defaultMaxAttempts    = 5
	defaultPublishTimeout = 5 * time.Second
	defaultClaimLease     = 5 * time.Minute
)

// Dispatcher relays pending events to a Publisher. A circuit breaker stops
// hammering the broker while it is down; events claimed during an open
// breaker are released without burning an attempt.
type Dispatcher struct {
	repo           Repository
	pub            Publisher
	breaker        *gobreaker.CircuitBreaker
	logger         *slog.Logger
	batchSize      int
	interval       time.Duration
	maxAttempts    int
	publishTimeout time.Duration
	claimLease     time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.batchSize = n }
}

func WithInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.interval = interval }
}

func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

// WithClaimLease sets how long a claimed event may stay PROCESSING before
// another dispatcher takes it over.
func WithClaimLease(lease time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.claimLease = lease }
}

// WithBreakerSettings replaces the default breaker configuration.
func WithBreakerSettings(settings gobreaker.Settings) DispatcherOption {
	return func(d *Dispatcher) { d.breaker = gobreaker.NewCircuitBreaker(settings) }
}

func NewDispatcher(repo Repository, pub Publisher, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		repo:           repo,
		pub:            pub,
		logger:         logger,
		batchSize:      defaultBatchSize,
		interval:       defaultInterval,
		maxAttempts:    defaultMaxAttempts,
		publishTimeout: defaultPublishTimeout,
		claimLease:     defaultClaimLease,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.breaker == nil {
		d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "outbox-publisher",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	return d
}

func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox dispatcher started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were delivered.
// Claimed events are always settled, even when ctx ends mid-batch, so a
// shutdown does not leave them PROCESSING until the lease runs out.
func (d *Dispatcher) ProcessBatch(ctx context.Context) int {
	events, err := d.repo.FetchPending(ctx, d.batchSize, time.Now().UTC().Add(-d.claimLease))
	if err != nil {
		d.logger.ErrorContext(ctx, "fetch pending events failed", "error", err)
		return 0
	}

	settleCtx := context.WithoutCancel(ctx)

	delivered := 0
	for i, event := range events {
		if ctx.Err() != nil {
			d.release(settleCtx, events[i:], "dispatcher stopping, releasing batch")
			return delivered
		}

		err := d.publish(ctx, event)
		switch {
		case err == nil:
			if err := d.repo.MarkProcessed(settleCtx, event.ID); err != nil {
				d.logger.ErrorContext(ctx, "mark processed failed", "event_id", event.ID, "error", err)
				continue
			}
			delivered++

		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			d.release(settleCtx, events[i:], "publisher unavailable, releasing batch")
			return delivered

		case ctx.Err() != nil:
			d.release(settleCtx, events[i:], "dispatcher stopping, releasing batch")
			return delivered

		default:
			d.logger.ErrorContext(ctx, "publish failed",
				"event_id", event.ID,
				"event_type", event.Type,
				"attempts", event.Attempts+1,
				"error", err,
			)
			if err := d.repo.MarkForRetry(settleCtx, event.ID, d.maxAttempts); err != nil {
				d.logger.ErrorContext(ctx, "mark for retry failed", "event_id", event.ID, "error", err)
			}
		}
	}

	if delivered > 0 {
		d.logger.InfoContext(ctx, "outbox batch delivered", "count", delivered)
	}
	return delivered
}

// release hands claimed events back without counting an attempt.
func (d *Dispatcher) release(ctx context.Context, events []*Event, reason string) {
	d.logger.WarnContext(ctx, reason, "remaining", len(events))
	for _, e := range events {
		if err := d.repo.Release(ctx, e.ID); err != nil {
			d.logger.ErrorContext(ctx, "release event failed", "event_id", e.ID, "error", err)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, event *Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.pub.Publish(pubCtx, event)
	})
	return err
}
