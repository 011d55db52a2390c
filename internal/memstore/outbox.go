package memstore

import (
	"context"
	"fmt"
	"time"

	"corebank/internal/outbox"
)

func (s *Store) FetchPending(_ context.Context, limit int, staleBefore time.Time) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimedAt := time.Now().UTC()
	var out []*outbox.Event
	for _, id := range s.eventOrder {
		if len(out) == limit {
			break
		}
		e := s.events[id]
		expired := e.Status == outbox.StatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(staleBefore)
		if e.Status != outbox.StatusPending && !expired {
			continue
		}
		e.Status = outbox.StatusProcessing
		e.ClaimedAt = &claimedAt
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) MarkProcessed(_ context.Context, id string) error {
	return s.updateEvent(id, func(e *outbox.Event) {
		now := time.Now().UTC()
		e.Status = outbox.StatusProcessed
		e.ProcessedAt = &now
	})
}

func (s *Store) MarkForRetry(_ context.Context, id string, maxAttempts int) error {
	return s.updateEvent(id, func(e *outbox.Event) {
		e.Attempts++
		e.ClaimedAt = nil
		if e.Attempts >= maxAttempts {
			e.Status = outbox.StatusFailed
		} else {
			e.Status = outbox.StatusPending
		}
	})
}

func (s *Store) Release(_ context.Context, id string) error {
	return s.updateEvent(id, func(e *outbox.Event) {
		if e.Status == outbox.StatusProcessing {
			e.Status = outbox.StatusPending
			e.ClaimedAt = nil
		}
	})
}

// Events returns a copy of every stored event in insertion order.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]outbox.Event, 0, len(s.eventOrder))
	for _, id := range s.eventOrder {
		out = append(out, *s.events[id])
	}
	return out
}

func (s *Store) updateEvent(id string, fn func(*outbox.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return fmt.Errorf("outbox event %s not found", id)
	}
	fn(e)
	return nil
}
