package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub fans state updates out to connected dashboard clients.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       *zap.Logger
	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// Config holds hub configuration.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	CheckOrigin  func(r *http.Request) bool
	Logger       *zap.Logger
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	started   time.Time
}

// NewHub creates a new hub.
func NewHub(cfg *Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 2 * pingInterval
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:       logger,
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		clients:      make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
		done:    make(chan struct{}),
		started: time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	ActiveConnections.Inc()
	h.logger.Info("websocket-client-connected",
		zap.String("remote-addr", r.RemoteAddr),
		zap.Int("clients", count))

	go h.writeLoop(c)
	h.readLoop(c)
}

// Broadcast encodes v once and queues it for every client. Clients whose
// buffer is full miss the message.
func (h *Hub) Broadcast(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		case <-c.done:
		default:
			MessagesDroppedTotal.WithLabelValues("buffer_full").Inc()
			h.logger.Debug("websocket-message-dropped",
				zap.String("remote-addr", c.conn.RemoteAddr().String()))
		}
	}

	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.disconnect(c)
	}

	h.logger.Info("websocket-hub-closed", zap.Int("clients", len(clients)))
}

// readLoop discards client messages and returns when the connection fails.
func (h *Hub) readLoop(c *client) {
	defer h.disconnect(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket-read-error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer h.disconnect(c)

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				h.logger.Debug("websocket-write-failed", zap.Error(err))
				return
			}
			MessagesSentTotal.Inc()

		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout))
			if err != nil {
				h.logger.Debug("websocket-ping-failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) disconnect(c *client) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()

		ActiveConnections.Dec()
		ConnectionDuration.Observe(time.Since(c.started).Seconds())
		h.logger.Info("websocket-client-disconnected",
			zap.Duration("connected-for", time.Since(c.started)))
	})
}
