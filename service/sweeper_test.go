package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

func TestSweeperSweepRemovesExpiredState(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	challenge, err := e.challenges.Create(ctx, testClientID, testAddress, testMeta)
	require.NoError(t, err)
	challenge.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, e.challengeStore.Save(ctx, challenge))

	session, _, err := e.sessions.Create(ctx, testAddress, testClientID, testMeta)
	require.NoError(t, err)
	session.RefreshTokenExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, e.sessionStore.Save(ctx, session))

	e.audit.Log(&core.AuditEvent{Action: core.ActionLogout, Status: core.AuditSuccess, CreatedAt: time.Now().Add(-60 * 24 * time.Hour)})
	e.waitForAudit(t, core.AuditFilter{Action: core.ActionLogout})

	sweeper := NewSweeper(e.challenges, e.sessions, e.audit, 30*24*time.Hour, time.Hour, zapNop())
	sweeper.Sweep(ctx)

	_, err = e.challengeStore.Get(ctx, challenge.ID)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	_, err = e.sessionStore.Get(ctx, session.ID)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))

	aged, err := e.audit.Query(ctx, core.AuditFilter{Action: core.ActionLogout}, 10)
	require.NoError(t, err)
	assert.Empty(t, aged, "events past retention are pruned")
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	e := newEnv(t, nil)
	sweeper := NewSweeper(e.challenges, e.sessions, e.audit, time.Hour, 5*time.Millisecond, zapNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
