// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/session"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffered = 256
)

// Client represents a WebSocket client connection bound to one session.
// It implements chat.Conn.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	handler        *chat.Handler
	binding        session.Binding
	addr           string
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
	log            *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client for conn. The connection id is the session
// id of binding, or a fresh id for connections without a session.
func NewClient(conn *websocket.Conn, handler *chat.Handler, binding session.Binding, addr string, cfg Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := binding.SessionID
	if id == "" {
		id = "anonymous-" + addr
	}

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, sendBuffered),
		handler:        handler,
		binding:        binding,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		log:            log.With("conn", id, "addr", addr),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Send queues payload without blocking. It returns false when the client is
// closed or its buffer is full.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops outbound delivery. The write pump then sends a close frame and
// tears down the socket, which ends the read pump. Calling Close again is a no-op.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the reason a read failed. Every read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

// checkRateLimit reports whether the client may send another message now.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.log.Info("Rate limit exceeded; discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes one inbound frame and hands it to the chat handler.
// It returns false for frames that were dropped.
func (c *Client) processMessage(rawMessage []byte) bool {
	var frame Inbound
	if err := json.Unmarshal(rawMessage, &frame); err != nil {
		c.log.Info("Invalid frame", "error", err)
		return false
	}

	switch frame.Event {
	case inboundMessage:
		var p messagePayload
		if !c.decode(frame, &p) || p.Data == nil {
			return false
		}
		c.handler.Message(c.binding, *p.Data)
	case inboundFontChange:
		var p fontPayload
		if !c.decode(frame, &p) {
			return false
		}
		c.handler.FontChange(c.binding, valueOr(p.Font, chat.DefaultFont))
	case inboundFontColorChange:
		var p fontColorPayload
		if !c.decode(frame, &p) {
			return false
		}
		c.handler.FontColorChange(c.binding, valueOr(p.Color, chat.DefaultFontColor))
	case inboundCode:
		var p codePayload
		if !c.decode(frame, &p) {
			return false
		}
		c.handler.BroadcastCode(c.binding, p.Code)
	default:
		c.log.Info("Unknown event", "event", frame.Event)
		return false
	}
	return true
}

// decode unmarshals the frame payload into v. A missing payload leaves v zero.
func (c *Client) decode(frame Inbound, v any) bool {
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return true
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		c.log.Info("Invalid payload", "event", frame.Event, "error", err)
		return false
	}
	return true
}

// run opens the session and reads frames until the connection ends, then
// runs the disconnect path exactly once.
func (c *Client) run() {
	defer func() {
		c.handler.Close(c.binding, c)
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.handler.Open(c.binding, c)
	c.readPump()
}

func (c *Client) readPump() {
	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection in writePump", "error", err)
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error writing close message", "error", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
