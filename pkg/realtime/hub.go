// Package realtime keeps authenticated websocket connections per user and pushes JSON to them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// ErrNotConnected is returned by EmitToUser when the user has no open connection.
var ErrNotConnected = errors.New("user has no live connection")

const sendBuffer = 16

// Config tunes the hub.
type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// Hub fans payloads out to every connection a user holds.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	cfg      Config
	logger   *zap.Logger
}

type client struct {
	hub       *Hub
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewHub builds an empty hub.
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Serve upgrades the request and registers the connection for userID until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	c := &client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return nil
}

// EmitToUser queues payload on every connection of userID. It does not wait for the write.
func (h *Hub) EmitToUser(ctx context.Context, userID string, payload models.PushPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrNotConnected
	}
	queued := 0
	for _, c := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
		case c.send <- data:
			queued++
		default:
			h.logger.Warn("push buffer full, dropping connection", zap.String("user_id", userID))
			c.close()
		}
	}
	if queued == 0 {
		return ErrNotConnected
	}
	return nil
}

// Connections reports how many live connections userID holds.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0)
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("websocket connected", zap.String("user_id", c.userID), zap.Int("connections", len(set)))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump discards inbound frames and keeps the read deadline alive on pong.
func (c *client) readPump() {
	defer c.close()
	wait := c.hub.cfg.PingInterval * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.logger.Debug("websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
