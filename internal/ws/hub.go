package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"medconsult/internal/progress"
)

// Event is the envelope for every message pushed to clients.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	EventHealthUpdate         = "health_update"
	EventConsultationProgress = "consultation_progress"
	EventDiagnosisComplete    = "diagnosis_complete"
)

const (
	writeTimeout       = 10 * time.Second
	healthPushInterval = 5 * time.Second
	maxInboundMsgBytes = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The page is served from the same origin in production and from
	// localhost during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client wraps a connection with a write lock so the health ticker and
// broadcasts never interleave frames.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(event)
}

// HealthSource provides the snapshot pushed on the health ticker.
type HealthSource interface {
	Snapshot(ctx context.Context) interface{}
}

// HealthSourceFunc adapts a function to the HealthSource interface.
type HealthSourceFunc func(ctx context.Context) interface{}

func (f HealthSourceFunc) Snapshot(ctx context.Context) interface{} { return f(ctx) }

// Hub fans events out to every connected WebSocket client. clientGauge,
// when set, mirrors the connection count into Prometheus.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*client]struct{}
	logger      *zap.Logger
	health      HealthSource
	clientGauge prometheus.Gauge
}

func NewHub(health HealthSource, clientGauge prometheus.Gauge, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*client]struct{}),
		logger:      logger,
		health:      health,
		clientGauge: clientGauge,
	}
}

// ServeHTTP upgrades the request and keeps the connection alive, pushing
// health updates on a fixed interval until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.register(c)
	defer h.unregister(c)

	// Initial snapshot so the page renders immediately.
	h.pushHealth(r.Context(), c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxInboundMsgBytes)
		for {
			// Clients do not send data; this only detects disconnects.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(healthPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := h.pushHealth(r.Context(), c); err != nil {
				return
			}
		}
	}
}

func (h *Hub) pushHealth(ctx context.Context, c *client) error {
	var data interface{}
	if h.health != nil {
		data = h.health.Snapshot(ctx)
	}
	return c.send(Event{
		Type:      EventHealthUpdate,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// Broadcast sends an event to every connected client. Failed clients are
// dropped.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(event); err != nil {
			h.logger.Debug("dropping websocket client", zap.Error(err))
			h.unregister(c)
		}
	}
}

// PublishProgress implements progress.Publisher.
func (h *Hub) PublishProgress(update progress.Update) {
	h.Broadcast(EventConsultationProgress, update)
}

// ClientCount reports connected clients, used by the health snapshot.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.setGauge(len(h.clients))
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", h.ClientCount()))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
	h.setGauge(len(h.clients))
	h.mu.Unlock()
}

// setGauge mirrors the client count into Prometheus. Caller holds the lock.
func (h *Hub) setGauge(n int) {
	if h.clientGauge != nil {
		h.clientGauge.Set(float64(n))
	}
}
