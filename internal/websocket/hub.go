package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptorecs/internal/infrastructure"
	"cryptorecs/pkg/contracts/domain"
	"cryptorecs/pkg/contracts/events"

	"github.com/google/uuid"
)

const broadcastBufferSize = 64

// Hub maintains the set of active clients and broadcasts messages to them.
// The most recent run_status message is replayed to every client that
// connects, so late subscribers see the current run without polling.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	last    []byte
	running bool

	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubMetrics records client and message counts on m
func WithHubMetrics(m *infrastructure.BusinessMetrics) HubOption {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    infrastructure.NoopBusinessMetrics(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the hub loop in a goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	select {
	case <-h.quit:
		return
	default:
	}
	h.running = true
	go h.run()
}

// Stop closes every client and waits for the hub loop to exit. A stopped
// hub cannot be restarted.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		wasRunning := h.running
		h.running = false
		close(h.quit)
		h.mu.Unlock()
		if wasRunning {
			<-h.done
		}
	})
}

// Register adds a client. It reports false when the hub has been stopped,
// in which case the caller owns the connection.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every connected client. Messages sent while the
// hub is not running are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg events.WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	h.mu.Lock()
	if msg.Type == events.MessageTypeRunStatus {
		h.last = data
	}
	running := h.running
	h.mu.Unlock()
	if !running {
		return nil
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunChanged publishes a run_status message for every run transition
func (h *Hub) RunChanged(ctx context.Context, run domain.Run) {
	msg := events.NewRunStatusMessage(run)
	msg.ID = uuid.New().String()
	msg.TraceID = infrastructure.GetTraceID(ctx)

	if err := h.Broadcast(ctx, msg); err != nil {
		h.logger.WarnContext(ctx, "broadcast_failed",
			slog.Int64("run_id", run.RunID),
			slog.String("error", err.Error()))
	}
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.metrics.WebSocketClients.Add(ctx, -1)
			}
			h.mu.Unlock()
			h.logger.Info("hub_stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			last := h.last
			h.mu.Unlock()
			h.metrics.WebSocketClients.Add(ctx, 1)

			h.logger.InfoContext(client.context(), "client_registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(client, last)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			if !ok {
				continue
			}
			h.metrics.WebSocketClients.Add(ctx, -1)

			h.logger.InfoContext(client.context(), "client_unregistered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

// greet queues the connect message and the latest run snapshot
func (h *Hub) greet(client *Client, last []byte) {
	connect, err := json.Marshal(events.WebSocketMessage{
		ID:        uuid.New().String(),
		Type:      events.MessageTypeConnect,
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
		Data:      map[string]string{"client_id": client.id},
	})
	if err != nil {
		return
	}

	for _, message := range [][]byte{connect, last} {
		if message == nil {
			continue
		}
		select {
		case client.send <- message:
		default:
			h.logger.WarnContext(client.context(), "client_buffer_full",
				slog.String("client_id", client.id))
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent, dropped := 0, 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			// Buffer full: disconnect the slow client
			dropped++
			close(client.send)
			delete(h.clients, client)
			h.metrics.WebSocketClients.Add(ctx, -1)
			h.logger.WarnContext(client.context(), "client_dropped",
				slog.String("client_id", client.id))
		}
	}

	h.metrics.WebSocketMessagesSent.Add(ctx, int64(sent))
	if dropped > 0 {
		h.metrics.WebSocketMessagesDropped.Add(ctx, int64(dropped))
	}
	h.logger.Debug("broadcast_sent",
		slog.Int("client_count", sent),
		slog.Int("dropped", dropped),
		slog.Int("message_size", len(message)))
}
