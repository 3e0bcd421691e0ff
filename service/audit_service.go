package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

const (
	defaultAuditBuffer    = 256
	auditAppendTimeout    = 5 * time.Second
	DefaultAuditRetention = 30 * 24 * time.Hour
)

// AuditService is the append-only security event log. Writes are
// fire-and-forget through a buffered channel drained by a single worker, so
// they stay ordered per process and never fail the calling request.
type AuditService struct {
	store ports.AuditStore
	log   *zap.Logger

	ch        chan *core.AuditEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAuditService(store ports.AuditStore, log *zap.Logger, buffer int) *AuditService {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	s := &AuditService{
		store: store,
		log:   log,
		ch:    make(chan *core.AuditEvent, buffer),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AuditService) run() {
	defer s.wg.Done()
	for event := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), auditAppendTimeout)
		if err := s.store.Append(ctx, event); err != nil {
			// Audit persistence failures must never surface to the
			// authentication path; report them out of band.
			s.log.Error("audit append failed",
				zap.String("action", event.Action),
				zap.Error(err))
		}
		cancel()
	}
}

// Log enqueues an event. When the buffer is full the event is dropped and
// the drop itself is logged; the caller is never blocked.
func (s *AuditService) Log(event *core.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	select {
	case s.ch <- event:
	default:
		s.log.Warn("audit buffer full, dropping event",
			zap.String("action", event.Action),
			zap.String("client_id", event.ClientID))
	}
}

// Query returns retained events matching the filter, newest first.
func (s *AuditService) Query(ctx context.Context, filter core.AuditFilter, limit int) ([]*core.AuditEvent, error) {
	return s.store.Query(ctx, filter, limit)
}

// Stats aggregates the retained log.
func (s *AuditService) Stats(ctx context.Context) (*core.AuditStats, error) {
	return s.store.Stats(ctx)
}

// CleanupBefore applies retention, removing events older than the cutoff.
func (s *AuditService) CleanupBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.store.DeleteBefore(ctx, cutoff)
}

// Close drains pending events and stops the worker.
func (s *AuditService) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
}
