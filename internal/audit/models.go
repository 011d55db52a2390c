package audit

import "time"

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type AuditLog struct {
	ID            uint64
	RequestID     string
	Action        string
	Status        string
	Actor         string
	AccountID     string
	TransactionID string
	Message       *string
	CreatedAt     time.Time
}
