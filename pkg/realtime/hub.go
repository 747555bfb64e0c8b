package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/metrics"
)

const defaultClientBuffer = 64

// Client is one connected session. Outbound carries encoded envelopes in the
// order the hub received them and is closed on unregister.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan []byte
}

// Hub fans deliveries out to the clients connected to this instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	buffer  int
	logg    *logger.Logger
	metrics *metrics.RealtimeMetrics
}

func NewHub(logg *logger.Logger, m *metrics.RealtimeMetrics, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		buffer:  buffer,
		logg:    logg,
		metrics: m,
	}
}

// Register attaches a new client for userID. Only deliveries that arrive after
// this call reach it.
func (h *Hub) Register(userID uuid.UUID) *Client {
	client := &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	h.metrics.ClientConnected()
	return client
}

// Unregister detaches the client and closes its outbound channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	set, ok := h.clients[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Outbound)
	h.mu.Unlock()

	h.metrics.ClientDisconnected()
}

// Deliver encodes the envelope once and enqueues it for every connected client
// of the audience. A full buffer drops the frame for that client only.
func (h *Hub) Deliver(ctx context.Context, d Delivery) {
	if len(d.UserIDs) == 0 {
		return
	}
	frame, err := json.Marshal(d.Envelope)
	if err != nil {
		if h.logg != nil {
			h.logg.Error(h.logg.WithEvent(ctx, string(d.Envelope.EventName)), "encode realtime envelope", err)
		}
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range d.UserIDs {
		for client := range h.clients[userID] {
			select {
			case client.Outbound <- frame:
			default:
				h.metrics.IncDropped(string(d.Envelope.EventName))
				if h.logg != nil {
					dropCtx := h.logg.WithFields(ctx, map[string]any{
						"event":     d.Envelope.EventName,
						"client_id": client.ID.String(),
						"user_id":   userID.String(),
					})
					h.logg.Warn(dropCtx, "dropping realtime frame; outbound buffer full")
				}
			}
		}
	}
}

// Connected reports how many clients userID has on this instance.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
