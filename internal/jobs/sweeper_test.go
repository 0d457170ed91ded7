package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInviteSweeper_ExpiresOnlyStalePending(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	st := db.Stores()

	b, err := st.Businesses.Create(ctx, models.Business{Slug: "acme", Name: "Acme"})
	require.NoError(t, err)
	owner := uuid.New()

	stale, err := st.Invites.Create(ctx, b.ID, "old@example.com", models.RoleManager, owner)
	require.NoError(t, err)
	fresh, err := st.Invites.Create(ctx, b.ID, "new@example.com", models.RoleManager, owner)
	require.NoError(t, err)
	db.BackdateInvite(stale.ID, time.Now().Add(-15*24*time.Hour))

	sweeper := NewInviteSweeper(st.Invites, 14*24*time.Hour, zap.NewNop())
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := st.Invites.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusRevoked, got.Status)
	assert.Nil(t, got.RevokedBy)

	got, err = st.Invites.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, got.Status)

	// A second sweep finds nothing left to do.
	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInviteSweeper_Start(t *testing.T) {
	st := memory.New().Stores()

	disabled := NewInviteSweeper(st.Invites, 0, zap.NewNop())
	require.NoError(t, disabled.Start("@hourly"))
	assert.Empty(t, disabled.cron.Entries())

	bad := NewInviteSweeper(st.Invites, time.Hour, zap.NewNop())
	assert.Error(t, bad.Start("not a schedule"))

	ok := NewInviteSweeper(st.Invites, time.Hour, zap.NewNop())
	require.NoError(t, ok.Start("@every 1h"))
	assert.Len(t, ok.cron.Entries(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok.Stop(ctx)
}
