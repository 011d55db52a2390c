package audit

import "context"

type Repository interface {
	Log(ctx context.Context, entry *AuditLog) error

	ListByRequest(ctx context.Context, requestID string) ([]AuditLog, error)

	GetRecentAuditLogs(ctx context.Context, limit int) ([]AuditLog, error)
}
