// Package server coordinates client registration, inbound signaling events,
// and connection cleanup for the signaling service via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/gosignal/internal/protocol"
	"github.com/Tyrowin/gosignal/internal/signaling"
)

// inboundFrame is a decoded client frame waiting to be applied by the hub loop.
type inboundFrame struct {
	client  *Client
	message protocol.Inbound
}

// Hub owns the registry of live clients and feeds their signaling events to
// the switchboard one at a time. It is the switchboard's Notifier: outbound
// notifications are looked up in the registry and queued on the recipient's
// send channel without blocking.
type Hub struct {
	clients     map[signaling.PeerID]*Client
	switchboard *signaling.Switchboard
	register    chan *Client
	unregister  chan *Client
	inbound     chan inboundFrame
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}

	maxMessageSize int64
	rateLimit      RateLimitConfig
}

// NewHub creates a Hub with its own switchboard. Clients created for this hub
// use the message size and rate limits from cfg.
func NewHub(cfg Config, opts signaling.Options) *Hub {
	cfg = cfg.Sanitize()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:        make(map[signaling.PeerID]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbound:        make(chan inboundFrame),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimit:      cfg.RateLimit,
	}
	h.switchboard = signaling.NewSwitchboard(h, opts)
	return h
}

// Switchboard exposes the hub's matchmaking state.
func (h *Hub) Switchboard() *signaling.Switchboard {
	return h.switchboard
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands a new client to the hub. It returns false once the hub has
// shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Notify implements signaling.Notifier. It is called with the switchboard
// lock held and must not block.
func (h *Hub) Notify(to signaling.PeerID, n signaling.Notification) {
	logger := logrus.WithFields(logrus.Fields{"peer": to, "event": n.Event})

	if n.Event == signaling.EventMatched && n.Role == signaling.RoleReceiver {
		matchesTotal.Inc()
	}

	out, err := protocol.FromNotification(n)
	if err != nil {
		logger.Errorf("Cannot encode notification: %v", err)
		return
	}
	payload, err := protocol.Encode(out)
	if err != nil {
		logger.Errorf("Cannot encode notification: %v", err)
		return
	}

	h.mutex.RLock()
	client, exists := h.clients[to]
	h.mutex.RUnlock()
	if !exists {
		if n.Event == signaling.EventRelay {
			droppedMessagesTotal.WithLabelValues(dropUnknownTarget).Inc()
		}
		logger.Debug("Recipient is not connected; dropping notification")
		return
	}

	if n.Event == signaling.EventRelay {
		relayedMessagesTotal.WithLabelValues(string(n.Kind)).Inc()
	}

	if !h.safeSend(client, payload) {
		droppedMessagesTotal.WithLabelValues(dropQueueFull).Inc()
		client.evict("send queue is full")
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// The read lock keeps unregister from closing the channel mid-send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration and signaling frames. It should be called in a separate
// goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				logrus.Warn("Received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case frame := <-h.inbound:
			h.handleInbound(frame)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	connectedClients.Set(float64(clientCount))

	client.logger.Infof("Client registered from %s. Total clients: %d", client.addr, clientCount)

	if greeting, err := protocol.Encode(protocol.Connected(client.id)); err == nil {
		h.safeSend(client, greeting)
	}

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	connectedClients.Set(float64(clientCount))
	client.logger.Infof("Client unregistered from %s. Total clients: %d", client.addr, clientCount)

	if _, dissolved := h.switchboard.Teardown(client.id, false); dissolved {
		teardownsTotal.WithLabelValues(causeTransportClose).Inc()
	}
	recordSwitchboardStats(h.switchboard.Stats())
}

func (h *Hub) handleInbound(frame inboundFrame) {
	client, msg := frame.client, frame.message

	switch msg.Type {
	case protocol.TypeReadyForCall:
		if err := h.switchboard.RequestMatch(client.id); err != nil {
			client.logger.Warnf("Ignoring match request: %v", err)
		}

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		kind, _ := msg.RelayKind()
		target := signaling.PeerID(msg.TargetUserID)
		if err := h.switchboard.Relay(kind, client.id, target, msg.Payload()); err != nil {
			droppedMessagesTotal.WithLabelValues(dropReason(err)).Inc()
			client.logger.Warnf("Dropping %s: %v", msg.Type, err)
			return
		}
		client.logger.Debugf("Relayed %s to %s", msg.Type, target)

	case protocol.TypePeerDisconnected:
		if _, dissolved := h.switchboard.Teardown(client.id, true); dissolved {
			teardownsTotal.WithLabelValues(causeSelfReport).Inc()
		}
	}

	recordSwitchboardStats(h.switchboard.Stats())
}

// shutdownClients closes all active client connections
func (h *Hub) shutdownClients() {
	logrus.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.closeConnection()
	}

	logrus.Infof("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	logrus.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		logrus.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
