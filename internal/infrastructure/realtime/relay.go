package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCloseTimeout = 5 * time.Second

// envelope is the Redis wire format of a relayed event.
type envelope struct {
	UserID  string          `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin"`
}

// RedisRelay fans events out to every instance through Redis Pub/Sub.
// Local connections are served directly and the instance skips its own
// messages when they come back from Redis.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	logger  *zap.Logger

	mu        sync.Mutex
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	isRunning bool
}

// RedisRelayOption configures a RedisRelay.
type RedisRelayOption func(*RedisRelay)

func WithRelayChannel(channel string) RedisRelayOption {
	return func(r *RedisRelay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

func WithRelayLogger(logger *zap.Logger) RedisRelayOption {
	return func(r *RedisRelay) { r.logger = logger }
}

// NewRedisRelay wraps hub with a shared Redis client. The caller keeps
// ownership of the client.
func NewRedisRelay(client *redis.Client, hub *Hub, opts ...RedisRelayOption) *RedisRelay {
	r := &RedisRelay{
		client:  client,
		hub:     hub,
		channel: "retailpulse:realtime",
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Emit delivers locally, then publishes for the other instances. A publish
// failure is logged only.
func (r *RedisRelay) Emit(ctx context.Context, userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("Failed to marshal realtime payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	r.hub.Deliver(ctx, userID, Message{Event: event, Data: string(data), ID: fmt.Sprintf("%d", time.Now().UnixNano())})

	msg, err := json.Marshal(envelope{UserID: userID, Event: event, Payload: data, Origin: r.origin})
	if err != nil {
		r.logger.Error("Failed to marshal relay envelope", zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.logger.Warn("Failed to publish realtime event",
			zap.String("channel", r.channel),
			zap.String("event", event),
			zap.Error(err))
	}
}

// Run subscribes to the relay channel and blocks until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	r.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelFn = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		r.markDone()
	}()

	pubsub := r.client.Subscribe(subCtx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	r.logger.Info("Subscribed to realtime relay channel", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			r.logger.Info("Realtime relay stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Realtime relay channel closed")
				return nil
			}
			r.handle(subCtx, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Error("Failed to unmarshal relay envelope",
			zap.String("payload", raw),
			zap.Error(err))
		return
	}
	if env.Origin == r.origin || env.UserID == "" {
		return
	}
	r.hub.Deliver(ctx, env.UserID, Message{Event: env.Event, Data: string(env.Payload), ID: fmt.Sprintf("%d", time.Now().UnixNano())})
}

func (r *RedisRelay) markDone() {
	r.doneOnce.Do(func() { close(r.doneCh) })
}

// Close stops the subscription.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	cancelFn := r.cancelFn
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for relay subscription to stop")
		}
	}
	return nil
}

var _ Emitter = (*RedisRelay)(nil)
