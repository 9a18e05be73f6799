package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultInvalidationChannel = "retailpulse:insights:invalidate"
	publishTimeout             = 2 * time.Second
)

// invalidation is the Redis wire format of a dropped report.
type invalidation struct {
	UserID string `json:"user_id"`
	Origin string `json:"origin"`
}

// SharedInsightsCache keeps the per-process report cache coherent across
// instances: every local Invalidate is broadcast over Redis Pub/Sub and
// applied by the other instances.
type SharedInsightsCache struct {
	*InsightsCache
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// SharedCacheOption configures a SharedInsightsCache.
type SharedCacheOption func(*SharedInsightsCache)

func WithInvalidationChannel(channel string) SharedCacheOption {
	return func(s *SharedInsightsCache) {
		if channel != "" {
			s.channel = channel
		}
	}
}

func WithInvalidationLogger(logger *zap.Logger) SharedCacheOption {
	return func(s *SharedInsightsCache) { s.logger = logger }
}

// NewSharedInsightsCache wraps local with a shared client. The caller keeps
// ownership of the client.
func NewSharedInsightsCache(local *InsightsCache, client *redis.Client, opts ...SharedCacheOption) *SharedInsightsCache {
	s := &SharedInsightsCache{
		InsightsCache: local,
		client:        client,
		channel:       defaultInvalidationChannel,
		origin:        uuid.NewString(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the local entry and tells the other instances to do the
// same. A failed publish is logged; their entries still expire on TTL.
func (s *SharedInsightsCache) Invalidate(userID string) {
	s.InsightsCache.Invalidate(userID)

	data, err := json.Marshal(invalidation{UserID: userID, Origin: s.origin})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn("Failed to broadcast report invalidation",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// Run applies invalidations from other instances until ctx is done.
func (s *SharedInsightsCache) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to invalidation channel: %w", err)
	}
	s.logger.Info("Subscribed to report invalidation channel", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.apply(msg.Payload)
		}
	}
}

func (s *SharedInsightsCache) apply(raw string) {
	var inv invalidation
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		s.logger.Warn("Dropping malformed invalidation", zap.String("payload", raw), zap.Error(err))
		return
	}
	if inv.Origin == s.origin || inv.UserID == "" {
		return
	}
	s.InsightsCache.Invalidate(inv.UserID)
}
