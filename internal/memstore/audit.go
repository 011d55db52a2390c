package memstore

import (
	"context"
	"time"

	"corebank/internal/audit"
)

func (s *Store) Log(_ context.Context, entry *audit.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = uint64(len(s.audits) + 1)
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *Store) ListByRequest(_ context.Context, requestID string) ([]audit.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.AuditLog
	for _, entry := range s.audits {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) GetRecentAuditLogs(_ context.Context, limit int) ([]audit.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.AuditLog, 0, limit)
	for i := len(s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audits[i])
	}
	return out, nil
}
