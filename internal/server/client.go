// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gosignal/internal/protocol"
	"github.com/Tyrowin/gosignal/internal/signaling"
)

const (
	sendQueueSize = 256
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	writeWait     = 10 * time.Second
)

// frameWriter is the write half of a websocket.Conn.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// Client is one signaling connection. Its id is the PeerID the switchboard
// knows it by.
type Client struct {
	id             signaling.PeerID
	conn           *websocket.Conn
	writer         frameWriter
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
	logger         *logrus.Entry
	closeOnce      sync.Once
}

// NewClient creates a new Client for conn with a fresh random id. The client's
// send channel is buffered to absorb bursts of notifications.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := signaling.PeerID(uuid.NewString())
	var writer frameWriter
	if conn != nil {
		conn.SetReadLimit(hub.maxMessageSize)
		writer = conn
	}

	return &Client{
		id:             id,
		conn:           conn,
		writer:         writer,
		send:           make(chan []byte, sendQueueSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: hub.maxMessageSize,
		rateLimiter:    newRateLimiter(hub.rateLimit.Burst, hub.rateLimit.RefillInterval),
		rateLimit:      hub.rateLimit,
		logger:         logrus.WithField("peer", id),
	}
}

// ID returns the connection identifier assigned to the client.
func (c *Client) ID() signaling.PeerID {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warnf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warnf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching its cause. Every
// read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warnf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Infof("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Infof("Client %s connection closed: %v", c.addr, err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warnf("Unexpected WebSocket error from %s: %v", c.addr, err)
	default:
		c.logger.Warnf("WebSocket read error from %s: %v", c.addr, err)
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		droppedMessagesTotal.WithLabelValues(dropRateLimited).Inc()
		c.logger.Warnf("Rate limit exceeded for %s (%d messages per %s); discarding message",
			c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes a raw frame and hands it to the hub loop. It returns
// false when the hub has shut down.
func (c *Client) processMessage(rawMessage []byte) bool {
	msg, err := protocol.DecodeInbound(rawMessage)
	if err != nil {
		droppedMessagesTotal.WithLabelValues(dropInvalidFrame).Inc()
		c.logger.Warnf("Invalid message from %s: %v", c.addr, err)
		return true
	}

	c.logger.Tracef("Received %s from %s: %s", msg.Type, c.addr, rawMessage)

	select {
	case c.hub.inbound <- inboundFrame{client: c, message: msg}:
		return true
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.closeConnection()
	}()

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

		if !c.processMessage(rawMessage) {
			return
		}
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
	case <-c.hub.ctx.Done():
		return false
	}
}

// evict drops a client that cannot keep up. Closing the socket makes the read
// pump unregister it, which in turn dissolves its session.
func (c *Client) evict(reason string) {
	c.logger.Warnf("Evicting client %s: %s", c.addr, reason)
	c.closeConnection()
}

// closeConnection closes the WebSocket connection once.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warnf("Error closing connection from %s: %v", c.addr, err)
		}
	})
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeFrame writes one frame under a fresh write deadline.
func (c *Client) writeFrame(messageType int, data []byte) error {
	if err := c.writer.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.writer.WriteMessage(messageType, data)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.writeFrame(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warnf("Error writing close message to %s: %v", c.addr, err)
		}
	}
	return false
}

// writeTextMessage writes message and then any frames already queued behind
// it. Each JSON object goes out in its own frame with its own deadline.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.writeFrame(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warnf("Error writing message to %s: %v", c.addr, err)
		}
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return c.writeCloseMessage()
		}
		if err := c.writeFrame(websocket.TextMessage, queued); err != nil {
			c.logger.Warnf("Error writing queued message to %s: %v", c.addr, err)
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
		c.logger.Warnf("Error writing ping message to %s: %v", c.addr, err)
		return false
	}
	return true
}
