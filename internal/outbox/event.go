package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
	StatusFailed     Status = "FAILED"
)

// Event is a ledger fact recorded in the same unit of work as the balance
// change it describes, and relayed to the broker afterwards.
type Event struct {
	ID          string
	AggregateID string
	Type        string
	Payload     []byte
	Status      Status
	Attempts    int
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

func NewEvent(eventType, aggregateID string, payload any, at time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     body,
		Status:      StatusPending,
		CreatedAt:   at,
	}, nil
}
