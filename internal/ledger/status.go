package ledger

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Only pending rows ever change status, and only once.
var statusTransitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

func (t *Transaction) transition(to Status, reviewerID string, at time.Time) error {
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: transaction %s is %s", ErrNotPending, t.ID, t.Status)
	}
	t.Status = to
	t.ApprovedBy = &reviewerID
	t.ApprovedAt = &at
	t.UpdatedAt = at
	return nil
}

func (t *Transaction) approve(approverID string, at time.Time) error {
	return t.transition(StatusApproved, approverID, at)
}

func (t *Transaction) reject(approverID string, at time.Time) error {
	return t.transition(StatusRejected, approverID, at)
}
