package ws

import (
	"context"
	"sync"
	"time"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
)

// RoomAuthorizer decides whether a user may join a complaint room.
type RoomAuthorizer interface {
	CanAccessComplaint(ctx context.Context, complaintID, userID string, role model.Role) (bool, error)
}

// PushNotifier delivers a notification out-of-band (web push) when the
// target user has no live connection. If nil, offline delivery is skipped.
type PushNotifier interface {
	Notify(ctx context.Context, userID string, n *model.Notification)
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[RoomID]map[*Client]struct{}
	joined   map[*Client]map[RoomID]struct{}
	total    int
	maxConns int

	access RoomAuthorizer
	push   PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(access RoomAuthorizer, maxConns int, push PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		rooms:      make(map[RoomID]map[*Client]struct{}),
		joined:     make(map[*Client]map[RoomID]struct{}),
		maxConns:   maxConns,
		access:     access,
		push:       push,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for c := range h.joined {
		allClients = append(allClients, c)
	}
	h.rooms = make(map[RoomID]map[*Client]struct{})
	h.joined = make(map[*Client]map[RoomID]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	h.joined[c] = make(map[RoomID]struct{})
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	rooms, ok := h.joined[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	for room := range rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.joined, c)
	h.total--
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventJoinRoom:
		h.handleJoin(ctx, c, msg.RoomID)
	case EventLeaveRoom:
		h.handleLeave(c, msg.RoomID)
	case EventJoinNotifications:
		// The target room is always the caller's own; the user_id field
		// in the payload is advisory and never trusted.
		h.joinRoom(c, UserRoom(c.userID))
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, raw string) {
	room, err := ParseRoomID(raw)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "malformed room id"})
		return
	}
	switch room.Kind {
	case RoomUser:
		if room.ID != c.userID {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "cannot join another user's room"})
			return
		}
	case RoomComplaint:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ok, err := h.access.CanAccessComplaint(ctx, room.ID, c.userID, c.role)
		if err != nil {
			logger.Errorf("ws access check complaint=%s user=%s: %v", room.ID, c.userID, err)
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "internal error"})
			return
		}
		if !ok {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not allowed"})
			return
		}
	}
	h.joinRoom(c, room)
}

// joinRoom adds the client to a room. A duplicate join is a no-op, so a
// rapidly remounting view never double-subscribes server-side.
func (h *Hub) joinRoom(c *Client, room RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[c]
	if !ok {
		return // client already unregistered
	}
	if _, dup := rooms[room]; dup {
		return
	}
	rooms[room] = struct{}{}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) handleLeave(c *Client, raw string) {
	room, err := ParseRoomID(raw)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, room)
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// BroadcastToRoom sends a message to every client in a room.
func (h *Hub) BroadcastToRoom(room RoomID, msg OutgoingMessage) {
	defer logger.DeferLogDuration("ws.BroadcastToRoom", time.Now())()
	h.mu.RLock()
	members, ok := h.rooms[room]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

// Notify delivers a notification to the user's room; if the user has no
// live client, it falls back to web push (when configured).
func (h *Hub) Notify(ctx context.Context, userID string, n *model.Notification) {
	room := UserRoom(userID)
	h.mu.RLock()
	online := len(h.rooms[room]) > 0
	h.mu.RUnlock()

	if online {
		h.BroadcastToRoom(room, OutgoingMessage{Type: EventNotification, Payload: n})
		return
	}
	if h.push != nil {
		go h.push.Notify(context.WithoutCancel(ctx), userID, n)
	}
}

// RoomSize returns the current number of clients in a room.
func (h *Hub) RoomSize(room RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
