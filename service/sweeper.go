package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often expired state is reaped when the
// caller does not configure an interval.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically removes expired challenges and sessions and
// enforces the audit retention window. Redis-backed stores mostly expire
// via key TTLs; the sweep covers the in-memory stores and the audit log.
type Sweeper struct {
	challenges *ChallengeService
	sessions   *SessionService
	audit      *AuditService
	retention  time.Duration
	interval   time.Duration
	log        *zap.Logger
}

func NewSweeper(challenges *ChallengeService, sessions *SessionService, audit *AuditService, retention, interval time.Duration, log *zap.Logger) *Sweeper {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		challenges: challenges,
		sessions:   sessions,
		audit:      audit,
		retention:  retention,
		interval:   interval,
		log:        log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single cleanup pass. Failures are logged, not
// propagated; the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	if n, err := s.challenges.SweepExpired(ctx); err != nil {
		s.log.Warn("challenge sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("swept expired challenges", zap.Int("count", n))
	}

	if n, err := s.sessions.SweepExpired(ctx); err != nil {
		s.log.Warn("session sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("swept expired sessions", zap.Int("count", n))
	}

	cutoff := time.Now().Add(-s.retention)
	if n, err := s.audit.CleanupBefore(ctx, cutoff); err != nil {
		s.log.Warn("audit cleanup failed", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("pruned audit events", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
}
