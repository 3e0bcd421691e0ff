package store

import (
	"context"
	"sync"
	"time"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// MemoryAuditStore keeps the append-only audit log in a slice, newest last.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []*core.AuditEvent
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(ctx context.Context, event *core.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

// Query returns matching events newest first.
func (s *MemoryAuditStore) Query(ctx context.Context, filter core.AuditFilter, limit int) ([]*core.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var out []*core.AuditEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Matches(s.events[i]) {
			cp := *s.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryAuditStore) Stats(ctx context.Context) (*core.AuditStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &core.AuditStats{
		Total:    len(s.events),
		ByAction: make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for _, event := range s.events {
		stats.ByAction[event.Action]++
		stats.ByStatus[string(event.Status)]++
	}
	if len(s.events) > 0 {
		stats.Oldest = s.events[0].CreatedAt
		stats.Newest = s.events[len(s.events)-1].CreatedAt
	}
	return stats, nil
}

func (s *MemoryAuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	removed := 0
	for _, event := range s.events {
		if event.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return removed, nil
}
