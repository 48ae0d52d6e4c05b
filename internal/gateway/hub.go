// Package gateway delivers engine events to connected clients.
package gateway

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

// DefaultClientBuffer is the outbound queue length per client
const DefaultClientBuffer = 256

// Subscription is a registered client's outbound stream
type Subscription struct {
	ID string
	ch chan []byte

	matches map[string]struct{}
}

// C yields encoded messages in emission order; it is closed on Unregister
func (s *Subscription) C() <-chan []byte { return s.ch }

// Hub fans events out to clients. Each message is encoded once; a client
// whose buffer is full misses that message rather than stalling the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Subscription

	buffer  int
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty hub
func NewHub(buffer int, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Subscription),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a client; registering an existing id replaces it
func (h *Hub) Register(clientID string) *Subscription {
	sub := &Subscription{
		ID:      clientID,
		ch:      make(chan []byte, h.buffer),
		matches: make(map[string]struct{}),
	}
	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		close(old.ch)
	} else {
		h.metrics.ClientConnected()
	}
	h.clients[clientID] = sub
	h.mu.Unlock()
	return sub
}

// Unregister removes a client and closes its stream
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	close(sub.ch)
	h.metrics.ClientDisconnected()
}

// Subscribe adds matchID to the client's match filter
func (h *Hub) Subscribe(clientID, matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.clients[clientID]
	if !ok {
		return false
	}
	sub.matches[matchID] = struct{}{}
	return true
}

// Clients returns the number of registered clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues pre-encoded data for one client
func (h *Hub) Send(clientID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.clients[clientID]
	if !ok {
		return false
	}
	return h.deliver(sub, data)
}

// SendMessage encodes and queues a message for one client
func (h *Hub) SendMessage(clientID string, m protocol.Message) bool {
	data, ok := h.encode(m)
	if !ok {
		return false
	}
	return h.Send(clientID, data)
}

// PublishToMatch delivers to clients subscribed to matchID
func (h *Hub) PublishToMatch(matchID string, m protocol.Message) {
	data, ok := h.encode(m)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.clients {
		if _, ok := sub.matches[matchID]; ok {
			h.deliver(sub, data)
		}
	}
}

// PublishToAll delivers to every client
func (h *Hub) PublishToAll(m protocol.Message) {
	data, ok := h.encode(m)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.clients {
		h.deliver(sub, data)
	}
}

func (h *Hub) encode(m protocol.Message) ([]byte, bool) {
	data, err := protocol.Encode(m)
	if err != nil {
		h.metrics.EventDropped("invalid")
		h.logger.Warn("dropping invalid outbound message",
			zap.String("type", m.MessageType()),
			zap.Error(err),
		)
		return nil, false
	}
	return data, true
}

// deliver must be called with h.mu held
func (h *Hub) deliver(sub *Subscription, data []byte) bool {
	select {
	case sub.ch <- data:
		return true
	default:
		h.metrics.EventDropped("buffer_full")
		h.logger.Debug("client buffer full, dropping message", zap.String("client_id", sub.ID))
		return false
	}
}
