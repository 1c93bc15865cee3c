// Package ws fans market events out to WebSocket subscribers. Each market is
// a room; an event published for a market reaches only the connections
// subscribed to that market.
package ws

import (
	"encoding/json"
	"sync"

	"hushbet/internal/events"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// envelope is the wire frame for every pushed event.
type envelope struct {
	Type     string       `json:"type"`
	MarketID uuid.UUID    `json:"market_id"`
	Payload  events.Event `json:"payload"`
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*client]bool
	log   *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		rooms: make(map[uuid.UUID]map[*client]bool),
		log:   log,
	}
}

// Publish implements the service's event sink. Marshal once, fan out to the
// event's market room; a client whose send buffer is full is dropped rather
// than allowed to stall the rest of the room.
func (h *Hub) Publish(ev events.Event) {
	data, err := json.Marshal(envelope{
		Type:     ev.Type(),
		MarketID: ev.Market(),
		Payload:  ev,
	})
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event")
		return
	}

	h.mu.RLock()
	room := h.rooms[ev.Market()]
	stalled := make([]*client, 0)
	for c := range room {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.log.WithField("market_id", ev.Market()).Warn("dropping slow websocket client")
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.marketID]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[c.marketID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.marketID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.marketID)
	}
}

// Subscribers reports the current room size, for tests and the health view.
func (h *Hub) Subscribers(marketID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[marketID])
}
