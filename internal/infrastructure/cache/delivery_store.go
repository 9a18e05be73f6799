package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const deliveryKeyPrefix = "retailpulse:delivery:"

// InMemoryDeliveryStore remembers delivery keys for one process.
type InMemoryDeliveryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewInMemoryDeliveryStore creates an empty store. Call RunCleanup to
// evict expired keys in the background.
func NewInMemoryDeliveryStore() *InMemoryDeliveryStore {
	return &InMemoryDeliveryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkDelivered records key and reports whether this is its first delivery
// within ttl.
func (s *InMemoryDeliveryStore) MarkDelivered(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// RunCleanup evicts expired keys every interval until ctx ends.
func (s *InMemoryDeliveryStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *InMemoryDeliveryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of tracked keys.
func (s *InMemoryDeliveryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisDeliveryStore shares delivery keys across instances with SETNX.
type RedisDeliveryStore struct {
	client *redis.Client
	prefix string
}

// NewRedisDeliveryStore wraps a shared client. The caller keeps ownership of it.
func NewRedisDeliveryStore(client *redis.Client) *RedisDeliveryStore {
	return &RedisDeliveryStore{client: client, prefix: deliveryKeyPrefix}
}

// MarkDelivered sets key only if absent, so exactly one instance sees true.
func (s *RedisDeliveryStore) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record delivery %s: %w", key, err)
	}
	return ok, nil
}

// DeliveryStore is satisfied by both stores.
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// NewDeliveryStore picks the Redis store when a client is configured and
// the in-memory store otherwise.
func NewDeliveryStore(client *redis.Client, logger *zap.Logger) DeliveryStore {
	if client != nil {
		logger.Info("Using Redis delivery store for change notifications")
		return NewRedisDeliveryStore(client)
	}
	logger.Info("Using in-memory delivery store for change notifications")
	return NewInMemoryDeliveryStore()
}
