package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoachCoe/polkadot-sso-sub005/adapters/store"
	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

func TestAuditLogDrainsInOrder(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	svc := NewAuditService(auditStore, zapNop(), 0)

	for i := 0; i < 20; i++ {
		svc.Log(&core.AuditEvent{
			Type:   core.AuditTypeAuthAttempt,
			Action: core.ActionChallengeIssued,
			Status: core.AuditSuccess,
			Details: map[string]string{
				"seq": fmt.Sprintf("%02d", i),
			},
		})
	}
	svc.Close()

	events, err := auditStore.Query(context.Background(), core.AuditFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 20)
	// Query is newest-first, so the last enqueued event comes back first.
	assert.Equal(t, "19", events[0].Details["seq"])
	assert.Equal(t, "00", events[19].Details["seq"])
}

func TestAuditLogStampsCreatedAt(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	svc := NewAuditService(auditStore, zapNop(), 0)

	svc.Log(&core.AuditEvent{Action: core.ActionLogout, Status: core.AuditSuccess})
	svc.Close()

	events, err := auditStore.Query(context.Background(), core.AuditFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.WithinDuration(t, time.Now(), events[0].CreatedAt, time.Second)
}

func TestAuditQueryAndStats(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.audit.Log(&core.AuditEvent{Type: core.AuditTypeAuthAttempt, Action: core.ActionChallengeIssued, Status: core.AuditSuccess})
	e.audit.Log(&core.AuditEvent{Type: core.AuditTypeSecurity, Action: core.ActionBruteForceDetected, Status: core.AuditFailure})
	e.waitForAudit(t, core.AuditFilter{Action: core.ActionBruteForceDetected})

	events, err := e.audit.Query(ctx, core.AuditFilter{Type: core.AuditTypeSecurity}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.ActionBruteForceDetected, events[0].Action)

	stats, err := e.audit.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[string(core.AuditFailure)])
}

func TestAuditCleanupBefore(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.audit.Log(&core.AuditEvent{Action: core.ActionLogout, Status: core.AuditSuccess, CreatedAt: time.Now().Add(-48 * time.Hour)})
	e.audit.Log(&core.AuditEvent{Action: core.ActionLogout, Status: core.AuditSuccess})
	e.waitForAudit(t, core.AuditFilter{Action: core.ActionLogout})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if stats, err := e.audit.Stats(ctx); err == nil && stats.Total == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	removed, err := e.audit.CleanupBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := e.audit.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestAuditCloseIsIdempotent(t *testing.T) {
	svc := NewAuditService(store.NewMemoryAuditStore(), zapNop(), 0)
	svc.Close()
	svc.Close()
}
