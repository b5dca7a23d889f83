package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/model"
)

const clientSendBuffer = 64

// Client is one connected participant in a session room.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	roomID   string
	userID   string
	userName string
	role     model.UserRole
}

// Hub tracks room membership and fans events out to members. Rooms are keyed
// by the session's opaque room token; membership is purely in-memory and
// rebuilt as clients reconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*Client]bool)
	}
	h.rooms[c.roomID][c] = true
	count := len(h.rooms[c.roomID])
	h.mu.Unlock()

	log.Info().
		Str("roomId", c.roomID).
		Str("userId", c.userID).
		Int("members", count).
		Msg("client joined session room")
}

// unregister removes the client and reports how many members remain.
func (h *Hub) unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.roomID]
	if !ok || !clients[c] {
		return len(clients)
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
		return 0
	}
	return len(clients)
}

// Broadcast sends payload to every member of the room, optionally excluding
// one client. A member with a full send buffer drops the event rather than
// blocking the rest of the room.
func (h *Hub) Broadcast(roomID string, payload []byte, exclude *Client) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != exclude {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			log.Warn().
				Str("roomId", roomID).
				Str("userId", c.userID).
				Msg("client send buffer full, dropping event")
		}
	}
}

// sendTo delivers payload to a single client, dropping on a full buffer.
func (h *Hub) sendTo(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Warn().
			Str("roomId", c.roomID).
			Str("userId", c.userID).
			Msg("client send buffer full, dropping reply")
	}
}

// RoomCount returns the number of currently connected members.
func (h *Hub) RoomCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// NotifyStatusChanged implements service.RoomNotifier: lifecycle operations
// invoked over HTTP surface in the room as status events too.
func (h *Hub) NotifyStatusChanged(roomID string, status model.SessionStatus) {
	event := mustMarshal(StatusEvent{
		Type:      TypeStatusChanged,
		Status:    string(status),
		Timestamp: now(),
	})
	h.Broadcast(roomID, event, nil)
}
