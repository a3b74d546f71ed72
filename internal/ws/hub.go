package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
)

// The set of connected clients grouped by room. The hub owns membership
// and routes every event per the wire table: room broadcasts exclude the
// sender, joined goes to the whole room, sync events are unicast. The
// hub forwards drawing and document payloads untouched; it never holds
// document or whiteboard state.
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	// All connected clients by socket id, roomless ones included
	byID map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound events from clients
	inbound chan *inboundEvent

	log *slog.Logger

	mu sync.RWMutex
}

type inboundEvent struct {
	sender *Client
	env    *protocol.Envelope
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		byID:       make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundEvent),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.byID[client.socketID] = client
			h.mu.Unlock()

			h.log.Debug("client connected", "socketId", client.socketID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.byID[client.socketID]; ok {
				h.leaveRoomLocked(client)
				delete(h.byID, client.socketID)
				close(client.send)
			}
			h.mu.Unlock()

		case ev := <-h.inbound:
			h.route(ev.sender, ev.env)
		}
	}
}

func (h *Hub) route(sender *Client, env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoin:
		var p protocol.JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			h.log.Warn("bad join payload", "socketId", sender.socketID, "err", err)
			return
		}
		h.join(sender, p.RoomID, p.Username)

	case protocol.EventLeave:
		h.mu.Lock()
		h.leaveRoomLocked(sender)
		h.mu.Unlock()

	case protocol.EventCodeChange,
		protocol.EventWhiteboardBegin,
		protocol.EventWhiteboardDraw,
		protocol.EventWhiteboardEnd,
		protocol.EventWhiteboardClear:
		h.broadcast(sender, env)

	case protocol.EventSyncCode:
		var p protocol.SyncCodePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.unicast(p.SocketID, env)

	case protocol.EventWhiteboardRequestSync:
		// Stamp the requester id so responders can address the reply.
		var p protocol.WhiteboardRequestSyncPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		p.SocketID = sender.socketID
		stamped, err := protocol.NewEnvelope(env.Event, p)
		if err != nil {
			return
		}
		h.broadcast(sender, stamped)

	case protocol.EventWhiteboardSync:
		var p struct {
			SocketID string `json:"socketId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		h.unicast(p.SocketID, env)

	default:
		h.log.Debug("unknown event dropped", "event", env.Event, "socketId", sender.socketID)
	}
}

func (h *Hub) join(c *Client, roomID, username string) {
	h.mu.Lock()
	if c.roomID != "" && c.roomID != roomID {
		h.leaveRoomLocked(c)
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	c.roomID = roomID
	c.username = username

	clients := make([]protocol.Participant, 0, len(h.rooms[roomID]))
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for member := range h.rooms[roomID] {
		clients = append(clients, protocol.Participant{
			SocketID: member.socketID,
			Username: member.username,
		})
		members = append(members, member)
	}
	h.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.EventJoined, protocol.JoinedPayload{
		Clients:  clients,
		Username: username,
		SocketID: c.socketID,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	// The joiner receives its own joined event too; that is how it
	// learns its socket id.
	for _, member := range members {
		h.send(member, data)
	}

	h.log.Info("client joined room", "room", roomID, "username", username, "total", len(members))
}

// leaveRoomLocked removes c from its room and tells the remaining
// members. Callers hold h.mu.
func (h *Hub) leaveRoomLocked(c *Client) {
	if c.roomID == "" {
		return
	}
	roomID := c.roomID
	clients, ok := h.rooms[roomID]
	if !ok {
		c.roomID = ""
		return
	}
	delete(clients, c)
	c.roomID = ""

	if len(clients) == 0 {
		delete(h.rooms, roomID)
		h.log.Info("room closed (empty)", "room", roomID)
		return
	}

	env, err := protocol.NewEnvelope(protocol.EventDisconnected, protocol.DisconnectedPayload{
		SocketID: c.socketID,
		Username: c.username,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	for member := range clients {
		h.send(member, data)
	}

	h.log.Info("client left room", "room", roomID, "username", c.username, "remaining", len(clients))
}

// broadcast forwards env to every member of the sender's room except
// the sender itself.
func (h *Hub) broadcast(sender *Client, env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[sender.roomID]
	if !ok {
		return
	}
	for client := range clients {
		if client != sender {
			h.send(client, data)
		}
	}
}

// unicast forwards env to a single socket id, anywhere on the relay.
func (h *Hub) unicast(socketID string, env *protocol.Envelope) {
	if socketID == "" {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	target, ok := h.byID[socketID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.send(target, data)
}

func (h *Hub) send(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Slow consumer; drop the frame rather than block the hub.
		h.log.Warn("send buffer full, dropping frame", "socketId", c.socketID)
	}
}

// Stats accessors for the HTTP API.

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// ActiveRooms returns the member count per room.
func (h *Hub) ActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make(map[string]int, len(h.rooms))
	for id, clients := range h.rooms {
		rooms[id] = len(clients)
	}
	return rooms
}
