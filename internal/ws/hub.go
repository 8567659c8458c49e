// Package ws manages the set of live subscriber connections and the
// best-effort fan-out of fused state and relayed frames.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"pet-monitor/tracker/internal/metrics"
)

// SensorSink receives sensor_data payloads arriving over the live channel
// instead of the bus.
type SensorSink interface {
	SensorData(ctx context.Context, payload []byte)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard may be served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients. Broadcasts are best-effort: a client whose
// outbound queue is full loses the frame, a client whose write fails is
// pruned. Nothing is buffered indefinitely and nothing is retried.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	sensors SensorSink
}

func NewHub(sensors SensorSink) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		sensors: sensors,
	}
}

// ServeHTTP upgrades the connection and runs the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[ws] client %s connected (%d online)", c.id, n)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if present {
		c.close()
		log.Printf("[ws] client %s disconnected", c.id)
	}
}

// Broadcast sends a text frame to every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.broadcastExcept(nil, websocket.TextMessage, payload)
}

// broadcastExcept fans a frame out to all clients but the originator.
// The client set is copied out under the lock; queueing happens unlocked.
func (h *Hub) broadcastExcept(origin *Client, messageType int, payload []byte) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != origin {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.trySend(messageType, payload) {
			metrics.WSFrameDrops.Add(1)
		}
	}
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
