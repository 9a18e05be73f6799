package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisRelay_Emit(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	hub := NewHub()
	relay := NewRedisRelay(client, hub, WithRelayChannel("test:realtime"))
	assert.Equal(t, "test:realtime", relay.channel)

	c, unregister, err := hub.Register("user-a")
	require.NoError(t, err)
	defer unregister()

	relay.Emit(context.Background(), "user-a", EventStockUpdate, map[string]int{"stockQuantity": 3})

	msg := receive(t, c)
	assert.Equal(t, EventStockUpdate, msg.Event)
	assert.JSONEq(t, `{"stockQuantity":3}`, msg.Data)
}

func TestRedisRelay_Handle(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	hub := NewHub()
	relay := NewRedisRelay(client, hub)

	c, unregister, err := hub.Register("user-a")
	require.NoError(t, err)
	defer unregister()

	encode := func(env envelope) string {
		data, err := json.Marshal(env)
		require.NoError(t, err)
		return string(data)
	}

	t.Run("own messages are skipped", func(t *testing.T) {
		relay.handle(context.Background(), encode(envelope{
			UserID: "user-a", Event: EventInventoryUpdated, Payload: json.RawMessage(`{}`), Origin: relay.origin,
		}))
		assert.Empty(t, c.Chan)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		relay.handle(context.Background(), "not json")
		assert.Empty(t, c.Chan)
	})

	t.Run("messages from other instances are delivered", func(t *testing.T) {
		relay.handle(context.Background(), encode(envelope{
			UserID: "user-a", Event: EventInventoryUpdated, Payload: json.RawMessage(`{"report":1}`), Origin: "other",
		}))
		msg := receive(t, c)
		assert.Equal(t, EventInventoryUpdated, msg.Event)
		assert.JSONEq(t, `{"report":1}`, msg.Data)
	})
}

func TestRedisRelay_RunFailsWithoutRedis(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	relay := NewRedisRelay(client, NewHub())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Error(t, relay.Run(ctx))
	assert.NoError(t, relay.Close())
}
