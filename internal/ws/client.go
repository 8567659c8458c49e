package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue depth per client. A slow consumer loses frames rather
	// than growing an unbounded buffer.
	sendQueueSize = 64
)

type frame struct {
	messageType int
	data        []byte
}

type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan frame
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString()[:8],
		hub:  h,
		conn: conn,
		send: make(chan frame, sendQueueSize),
	}
}

// trySend queues a frame without blocking. Returns false when the client is
// gone or its queue is full and the frame was dropped.
func (c *Client) trySend(messageType int, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame{messageType: messageType, data: data}:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// inboundMessage is the envelope for text frames from a subscriber.
type inboundMessage struct {
	Type string `json:"type"`
}

func (c *Client) readPump() {
	defer c.hub.remove(c)
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		// Opaque media frames are relayed verbatim to everyone else.
		if messageType == websocket.BinaryMessage {
			c.hub.broadcastExcept(c, websocket.BinaryMessage, data)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[ws] client %s sent invalid JSON, ignoring", c.id)
			continue
		}

		switch msg.Type {
		case "control_command", "scan_ble", "frame":
			// Relayed to the other connections (typically the device side).
			c.hub.broadcastExcept(c, websocket.TextMessage, data)

		case "sensor_data":
			if c.hub.sensors != nil {
				c.hub.sensors.SensorData(context.Background(), data)
			}
			// Sensor-driven updates reach the other clients through the
			// pipeline's state broadcast, not by direct relay.

		case "heartbeat":
			// Liveness only.

		default:
			log.Printf("[ws] client %s sent unknown type %q", c.id, msg.Type)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				// Dead or stuck connection: prune, do not retry.
				go c.hub.remove(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go c.hub.remove(c)
				return
			}
		}
	}
}
