package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole_NormalisesCasing(t *testing.T) {
	for _, in := range []string{"owner", "Owner", " OWNER "} {
		r, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, RoleOwner, r)
	}

	r, err := ParseRole("owner_and_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleOwnerAndManager, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestRole_Permissions(t *testing.T) {
	cases := []struct {
		role           Role
		orders, manage bool
	}{
		{RoleOwner, true, true},
		{RoleManager, true, false},
		{RoleOwnerAndManager, true, true},
		{RoleGuest, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.orders, tc.role.CanManageOrders())
			assert.Equal(t, tc.manage, tc.role.CanManageBusiness())
		})
	}
}

func TestRole_OwnerAndManagerIsUnion(t *testing.T) {
	union := RoleOwnerAndManager
	for _, r := range []Role{RoleOwner, RoleManager} {
		if r.CanManageOrders() {
			assert.True(t, union.CanManageOrders())
		}
		if r.CanManageBusiness() {
			assert.True(t, union.CanManageBusiness())
		}
	}
	assert.False(t, union.Stored())
	assert.True(t, RoleManager.Stored())
}

func TestParseOrderStatus(t *testing.T) {
	for _, st := range OrderStatuses {
		got, err := ParseOrderStatus(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	got, err := ParseOrderStatus("waiting_payment")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusWaitingPayment, got)

	_, err = ParseOrderStatus("PAID")
	assert.Error(t, err)
	_, err = ParseOrderStatus("")
	assert.Error(t, err)
}

func TestParseInviteStatus(t *testing.T) {
	got, err := ParseInviteStatus("revoked")
	require.NoError(t, err)
	assert.Equal(t, InviteStatusRevoked, got)

	_, err = ParseInviteStatus("EXPIRED")
	assert.Error(t, err)
}
