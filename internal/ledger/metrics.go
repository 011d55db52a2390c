package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time spent inside a ledger unit of work, lock waits included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

var outcomeLabels = []struct {
	err   error
	label string
}{
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrLockTimeout, "lock_timeout"},
	{ErrNotPending, "not_pending"},
	{ErrStaleApproval, "stale_approval"},
	{ErrAccountNotFound, "not_found"},
	{ErrSourceNotFound, "not_found"},
	{ErrDestinationNotFound, "not_found"},
	{ErrTransactionNotFound, "not_found"},
	{ErrAccountNotActive, "inactive"},
	{ErrSourceInactive, "inactive"},
	{ErrDestinationInactive, "inactive"},
	{ErrInvalidAmount, "invalid"},
	{ErrInvalidType, "invalid"},
	{ErrSameAccount, "invalid"},
	{ErrCurrencyMismatch, "invalid"},
	{ErrSelfApproval, "forbidden"},
	{ErrInvalidCaller, "forbidden"},
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, o := range outcomeLabels {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

func observe(operation string, started time.Time, err error) {
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
