package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := New()

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(tx repository.Stores) error {
		if _, err := tx.Users.Create(ctx, "a@example.com", "", false); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, db.Counts().Users)

	err = db.WithinTx(ctx, func(tx repository.Stores) error {
		_, err := tx.Users.Create(ctx, "a@example.com", "", false)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, db.Counts().Users)
}

func TestMemberships_SingleManager(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	b, err := stores.Businesses.Create(ctx, models.Business{Slug: "acme"})
	require.NoError(t, err)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, stores.Memberships.Upsert(ctx, b.ID, first, models.RoleManager))
	require.NoError(t, stores.Memberships.Upsert(ctx, b.ID, first, models.RoleManager))

	err = stores.Memberships.Upsert(ctx, b.ID, second, models.RoleManager)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestInvites_OnePendingPerTriple(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	bizID, owner := uuid.New(), uuid.New()

	inv, err := stores.Invites.Create(ctx, bizID, "Bob@Example.com", models.RoleManager, owner)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.Email)

	_, err = stores.Invites.Create(ctx, bizID, "bob@example.com", models.RoleManager, owner)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	ok, err := stores.Invites.MarkRevoked(ctx, inv.ID, &owner)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = stores.Invites.MarkAccepted(ctx, inv.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "terminal invites are not reopened")

	_, err = stores.Invites.Create(ctx, bizID, "bob@example.com", models.RoleManager, owner)
	assert.NoError(t, err)
}

func TestOrders_NumbersPerBusiness(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	a, _ := stores.Businesses.Create(ctx, models.Business{Slug: "a"})
	b, _ := stores.Businesses.Create(ctx, models.Business{Slug: "b"})

	for i := 1; i <= 3; i++ {
		o, err := stores.Orders.Create(ctx, models.Order{BusinessID: a.ID, ClientName: "x", Amount: 1})
		require.NoError(t, err)
		assert.EqualValues(t, i, o.OrderNumber)
	}
	o, err := stores.Orders.Create(ctx, models.Order{BusinessID: b.ID, ClientName: "y", Amount: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, o.OrderNumber)

	list, err := stores.Orders.List(ctx, a.ID, models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.EqualValues(t, 3, list[0].OrderNumber)
}

func TestOrders_RejectNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()
	b, err := stores.Businesses.Create(ctx, models.Business{Slug: "acme"})
	require.NoError(t, err)

	for _, amount := range []float64{0, -5, 0.004} {
		_, err := stores.Orders.Create(ctx, models.Order{BusinessID: b.ID, ClientName: "x", Amount: amount})
		assert.Error(t, err, "amount %v", amount)
	}

	o, err := stores.Orders.Create(ctx, models.Order{BusinessID: b.ID, ClientName: "x", Amount: 0.01})
	require.NoError(t, err)
	o.Amount = 0
	_, err = stores.Orders.UpdateDetails(ctx, *o)
	assert.Error(t, err)
}

func TestUsers_ClaimEmail(t *testing.T) {
	ctx := context.Background()
	stores := New().Stores()

	squatter, err := stores.Users.Create(ctx, "bob@example.com", "hash", false)
	require.NoError(t, err)
	assert.False(t, squatter.EmailVerified)

	claimed, err := stores.Users.ClaimEmail(ctx, squatter.ID)
	require.NoError(t, err)
	assert.True(t, claimed.EmailVerified)
	assert.Empty(t, claimed.PasswordHash)

	verified, err := stores.Users.Create(ctx, "carol@example.com", "hash", true)
	require.NoError(t, err)
	again, err := stores.Users.ClaimEmail(ctx, verified.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", again.PasswordHash)

	missing, err := stores.Users.ClaimEmail(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
