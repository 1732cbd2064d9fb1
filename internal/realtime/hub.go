package realtime

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB

	defaultBufferSize = 64
)

// Hub coordinates realtime sessions for connected clients. Events are routed
// by user id through the registry; a user with several open tabs receives one
// copy per session.
type Hub struct {
	registry *Registry
	upgrader websocket.Upgrader
}

// NewHub constructs a realtime hub backed by the supplied registry.
func NewHub(registry *Registry) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Registry exposes the underlying session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Serve upgrades the HTTP connection to a WebSocket and registers the client
// under the authenticated user id. It blocks until the connection closes.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}

	client := newConnection(h, conn, userID)
	h.registry.Register(userID, client)

	go client.writeLoop()
	client.readLoop()
}

// EmitToUser delivers an event to all live sessions of the supplied user.
func (h *Hub) EmitToUser(userID string, event Event) {
	h.registry.EmitToUser(userID, event)
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		userID: userID,
		send:   make(chan Event, defaultBufferSize),
		done:   make(chan struct{}),
	}
}

// Deliver enqueues an event without blocking. A full buffer means the client
// stopped draining; the connection is closed and reports false. The registry
// may still hold a snapshot of this session after close, so the send channel
// is never closed and enqueueing happens under the connection's own lock.
func (c *connection) Deliver(event Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	select {
	case c.send <- event:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		log.Printf("realtime: dropping backpressure client (user=%s)", c.userID)
		c.close()
		return false
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: unexpected close for user=%s: %v", c.userID, err)
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			log.Printf("realtime: invalid control payload for user=%s: %v", c.userID, err)
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "ping":
			// Clients can send ping control messages; reply with pong.
			c.Deliver(Event{Event: "pong"})
		default:
			log.Printf("realtime: unsupported control action '%s' for user=%s", ctrl.Action, c.userID)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		c.hub.registry.Unregister(c.userID, c)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if strings.Contains(value, "://") {
		if parts := strings.SplitN(value, "://", 2); len(parts) == 2 {
			value = parts[1]
		}
	}
	if idx := strings.Index(value, "/"); idx >= 0 {
		value = value[:idx]
	}

	if host, _, err := net.SplitHostPort(value); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(value)
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
