// Package realtime pushes per-user events to connected browsers over
// Server-Sent Events, optionally fanned out across instances through Redis.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Event names delivered to clients.
const (
	EventConnected        = "connected"
	EventHeartbeat        = "heartbeat"
	EventInventoryUpdated = "inventory-updated"
	EventStockUpdate      = "stock-update"
)

// Emitter delivers an event to every live connection of a user. Emit never
// blocks on slow clients and never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, userID, event string, payload any)
}

// Message is one SSE frame.
type Message struct {
	Event string
	Data  string
	ID    string
}

// Client is a single SSE connection.
type Client struct {
	ID     string
	UserID string
	Chan   chan Message
	Done   chan struct{}

	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// Hub tracks connections per user.
type Hub struct {
	logger     *zap.Logger
	metrics    *telemetry.InsightsMetrics
	clients    sync.Map // map[userID]*sync.Map[clientID]*Client
	count      sync.Map // map[clientID]struct{}
	heartbeat  time.Duration
	bufferSize int
	maxClients int

	ctx     context.Context
	cancel  context.CancelFunc
	startMu sync.Mutex
	started bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

func WithHubHeartbeat(interval time.Duration) HubOption {
	return func(h *Hub) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

func WithHubBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithHubMaxClients(n int) HubOption {
	return func(h *Hub) { h.maxClients = n }
}

func WithHubMetrics(m *telemetry.InsightsMetrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub. Call Start to begin heartbeats.
func NewHub(opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		logger:     zap.NewNop(),
		heartbeat:  30 * time.Second,
		bufferSize: 100,
		maxClients: 10000,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the heartbeat loop.
func (h *Hub) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.started {
		return fmt.Errorf("realtime hub already started")
	}
	go h.sendHeartbeats()
	h.started = true
	h.logger.Info("Realtime hub started", zap.Duration("heartbeat", h.heartbeat))
	return nil
}

// Stop disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
	h.clients.Range(func(_, value any) bool {
		value.(*sync.Map).Range(func(_, c any) bool {
			c.(*Client).close()
			return true
		})
		return true
	})
	h.logger.Info("Realtime hub stopped")
}

// Done is closed once the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}

// ErrTooManyClients is returned by Register when the hub is full.
var ErrTooManyClients = errors.New("maximum number of realtime connections reached")

// Register adds a connection for userID. The returned func unregisters it.
func (h *Hub) Register(userID string) (*Client, func(), error) {
	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		return nil, nil, ErrTooManyClients
	}
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Chan:   make(chan Message, h.bufferSize),
		Done:   make(chan struct{}),
	}
	value, _ := h.clients.LoadOrStore(userID, &sync.Map{})
	value.(*sync.Map).Store(client.ID, client)
	h.count.Store(client.ID, struct{}{})
	h.metrics.RealtimeClients(h.ctx, h.ClientCount())

	h.logger.Info("Realtime client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", userID))

	unregister := func() {
		if value, ok := h.clients.Load(userID); ok {
			value.(*sync.Map).Delete(client.ID)
		}
		h.count.Delete(client.ID)
		client.close()
		h.metrics.RealtimeClients(h.ctx, h.ClientCount())
		h.logger.Info("Realtime client disconnected", zap.String("client_id", client.ID))
	}
	return client, unregister, nil
}

// Emit marshals payload and delivers it to the user's connections.
func (h *Hub) Emit(ctx context.Context, userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal realtime payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	h.Deliver(ctx, userID, Message{Event: event, Data: string(data), ID: fmt.Sprintf("%d", time.Now().UnixNano())})
}

// Deliver pushes an already encoded message to the user's connections.
// A full client buffer drops the message for that client only.
func (h *Hub) Deliver(ctx context.Context, userID string, msg Message) {
	h.metrics.RealtimeEvent(ctx, msg.Event)
	value, ok := h.clients.Load(userID)
	if !ok {
		return
	}
	value.(*sync.Map).Range(func(_, c any) bool {
		h.send(c.(*Client), msg)
		return true
	})
}

func (h *Hub) send(client *Client, msg Message) {
	select {
	case <-client.Done:
	case client.Chan <- msg:
	default:
		h.logger.Warn("Client channel full, dropping message",
			zap.String("client_id", client.ID),
			zap.String("event", msg.Event))
	}
}

func (h *Hub) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			msg := Message{
				Event: EventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			}
			h.clients.Range(func(_, value any) bool {
				value.(*sync.Map).Range(func(_, c any) bool {
					h.send(c.(*Client), msg)
					return true
				})
				return true
			})
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	n := 0
	h.count.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

var _ Emitter = (*Hub)(nil)
