package notification

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client is one websocket connection and the rooms it joined
type Client struct {
	ID    string
	Send  chan []byte
	rooms map[string]struct{}
}

// NewClient creates a client with a buffered outbound queue
func NewClient(id string, buffer int) *Client {
	return &Client{
		ID:    id,
		Send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Hub tracks connected clients by room. It is the in-process Sink.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	log     *zap.Logger
	now     func() time.Time
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log,
		now:     time.Now,
	}
}

// Register adds a client that has not joined any room yet
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes the client from every room and closes its queue
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, client)
	close(client.Send)
}

// Join subscribes a registered client to room
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
}

// Broadcast marshals a frame and delivers it to room
func (h *Hub) Broadcast(room, event string, payload any) {
	data, err := json.Marshal(Frame{Event: event, Data: payload, Timestamp: h.now().UTC()})
	if err != nil {
		h.log.Error("Failed to marshal notification", zap.String("event", event), zap.Error(err))
		return
	}
	h.Deliver(room, data)
}

// Deliver pushes an encoded frame to every client in room. A client whose
// queue is full misses the frame.
func (h *Hub) Deliver(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
			h.log.Warn("Dropping notification for slow client",
				zap.String("client_id", client.ID),
				zap.String("room", room),
			)
		}
	}
}

func (h *Hub) NotifyUser(userID uint, event string, payload any) {
	h.Broadcast(UserRoom(userID), event, payload)
}

func (h *Hub) NotifyTopic(topic string, event string, payload any) {
	h.Broadcast(topic, event, payload)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of clients in room
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
