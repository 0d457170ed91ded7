package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Revoke(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Already expired tokens are not worth remembering.
	require.NoError(t, s.Revoke(ctx, "jti-2", time.Now().Add(-time.Second)))
	revoked, _ = s.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)
}

func TestMemoryStore_RevocationExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Revoke(ctx, "jti", now.Add(time.Minute)))
	now = now.Add(2 * time.Minute)

	revoked, err := s.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	until := time.Now().Add(time.Minute)

	first, err := s.ConsumeOnce(ctx, "code", until)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.ConsumeOnce(ctx, "code", until)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := s.ConsumeOnce(ctx, "other", until)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryStore_RevokeUnverified(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	ended, err := s.IsUnverifiedRevoked(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ended)

	require.NoError(t, s.RevokeUnverified(ctx, "user-1", now.Add(time.Hour)))
	ended, err = s.IsUnverifiedRevoked(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ended)

	ended, _ = s.IsUnverifiedRevoked(ctx, "user-2")
	assert.False(t, ended)

	now = now.Add(2 * time.Hour)
	ended, _ = s.IsUnverifiedRevoked(ctx, "user-1")
	assert.False(t, ended)
}
