// Package session keeps the server-side half of stateless JWT sessions:
// which token IDs were revoked by logout, which users' unverified sessions
// ended when their address was claimed, and which magic-link codes were
// already used.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	// Revoke marks a token ID as revoked until the token would have expired
	// anyway. Revoking an already expired token is a no-op.
	Revoke(ctx context.Context, jti string, until time.Time) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUnverified ends every session of userID that was issued before
	// the user's address was verified. until is the longest such a session
	// could still live.
	RevokeUnverified(ctx context.Context, userID string, until time.Time) error

	IsUnverifiedRevoked(ctx context.Context, userID string) (bool, error)

	// ConsumeOnce returns true the first time it sees jti and false after.
	ConsumeOnce(ctx context.Context, jti string, until time.Time) (bool, error)
}

const (
	revokedPrefix    = "session:revoked:"
	unverifiedPrefix = "session:unverified-revoked:"
	consumedPrefix   = "magic:used:"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to REDIS_URL ("redis://host:6379/0") and pings it.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) RevokeUnverified(ctx context.Context, userID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, unverifiedPrefix+userID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke unverified sessions: %w", err)
	}
	return nil
}

func (s *RedisStore) IsUnverifiedRevoked(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, unverifiedPrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("check unverified sessions: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) ConsumeOnce(ctx context.Context, jti string, until time.Time) (bool, error) {
	ttl := time.Until(until)
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.client.SetNX(ctx, consumedPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is a single-process Store for development without Redis and
// for tests. Entries are dropped lazily once they expire.
type MemoryStore struct {
	mu         sync.Mutex
	revoked    map[string]time.Time
	unverified map[string]time.Time
	consumed   map[string]time.Time
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked:    make(map[string]time.Time),
		unverified: make(map[string]time.Time),
		consumed:   make(map[string]time.Time),
		now:        time.Now,
	}
}

func (s *MemoryStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until.After(s.now()) {
		s.revoked[jti] = until
	}
	return nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(s.revoked, jti), nil
}

func (s *MemoryStore) RevokeUnverified(ctx context.Context, userID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until.After(s.now()) {
		s.unverified[userID] = until
	}
	return nil
}

func (s *MemoryStore) IsUnverifiedRevoked(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(s.unverified, userID), nil
}

// live reports whether key is present and unexpired, dropping it if expired.
// Callers hold s.mu.
func (s *MemoryStore) live(m map[string]time.Time, key string) bool {
	until, ok := m[key]
	if !ok {
		return false
	}
	if !until.After(s.now()) {
		delete(m, key)
		return false
	}
	return true
}

func (s *MemoryStore) ConsumeOnce(ctx context.Context, jti string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.consumed[jti]; ok && exp.After(s.now()) {
		return false, nil
	}
	if !until.After(s.now()) {
		until = s.now().Add(time.Minute)
	}
	s.consumed[jti] = until
	return true, nil
}
