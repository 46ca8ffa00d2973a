package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/tracker/internal/ports"
)

// MemoryTokenStore keeps revoked refresh token ids in memory until they expire
type MemoryTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryTokenStore creates an empty in-memory revocation store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

var _ ports.TokenRevocationStore = (*MemoryTokenStore)(nil)

func (s *MemoryTokenStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[tokenID] = expiresAt
	s.cleanupExpired()
	return nil
}

func (s *MemoryTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, exists := s.revoked[tokenID]
	if !exists {
		return false, nil
	}
	if !expiresAt.After(s.now()) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// cleanupExpired must be called with the lock held.
func (s *MemoryTokenStore) cleanupExpired() {
	now := s.now()
	for id, expiresAt := range s.revoked {
		if !expiresAt.After(now) {
			delete(s.revoked, id)
		}
	}
}

// RedisTokenStore keeps revoked refresh token ids in Redis with a TTL matching
// the token's remaining lifetime.
type RedisTokenStore struct {
	rdb *redis.Client
}

// NewRedisTokenStore connects to the Redis instance at url
func NewRedisTokenStore(ctx context.Context, url string) (*RedisTokenStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisTokenStore{rdb: rdb}, nil
}

var _ ports.TokenRevocationStore = (*RedisTokenStore)(nil)

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked:refresh:%s", tokenID)
}

func (s *RedisTokenStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

// Name identifies Redis in health reports
func (s *RedisTokenStore) Name() string { return "redis" }

// HealthCheck pings Redis
func (s *RedisTokenStore) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisTokenStore) Close() error {
	return s.rdb.Close()
}
