// Package monitor streams session events to WebSocket clients and answers
// health checks.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/balatrobot/internal/agent"
	"github.com/lox/balatrobot/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before it is dropped as too slow
	sendBuffer = 256
)

// Hub fans session events out to every connected client. It implements
// agent.EventSink.
type Hub struct {
	logger    *log.Logger
	upgrader  websocket.Upgrader
	validator auth.Validator

	mu      sync.RWMutex
	clients map[*client]struct{}

	published atomic.Int64
	dropped   atomic.Int64
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Option configures a Hub
type Option func(*Hub)

// WithValidator requires a token accepted by v to subscribe to /events
func WithValidator(v auth.Validator) Option {
	return func(h *Hub) { h.validator = v }
}

func NewHub(logger *log.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger.WithPrefix("monitor"),
		upgrader: websocket.Upgrader{
			// read-only feed for local tooling
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish sends e to every client without blocking. Clients whose buffer is
// full are disconnected.
func (h *Hub) Publish(e agent.Event) {
	h.published.Add(1)

	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to encode event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Client too slow, dropping", "remote", c.remote())
			h.dropped.Add(1)
			delete(h.clients, c)
			c.close()
		}
	}
}

func (c *client) remote() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Published returns the number of events seen
func (h *Hub) Published() int64 {
	return h.published.Load()
}

// Dropped returns the number of clients disconnected for falling behind
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// Handler serves /health and /events
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/events", auth.Middleware(h.validator, h.logger, http.HandlerFunc(h.handleEvents)))
	return mux
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	viewer := "anonymous"
	if id, ok := auth.FromContext(r.Context()); ok && id != nil {
		viewer = id.Name
	}
	h.logger.Info("Client connected", "remote", c.remote(), "viewer", viewer, "total", h.Clients())

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards anything the client sends and notices when it leaves
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		h.logger.Info("Client disconnected", "remote", c.remote(), "total", h.Clients())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("Failed to write event", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves the hub on addr until ctx is done
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen: %w", err)
	}
	return h.Serve(ctx, ln)
}

// Serve serves the hub on ln until ctx is done
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info("Monitor listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor serve: %w", err)
	}
	return nil
}
