package realtime

import (
	"sync"

	"github.com/civicdesk/internal/ws"
)

// Rooms tracks which rooms this session wants to be in. Joins are
// reference counted so two views watching the same complaint share one
// subscription, and the server sees join_room only on the first
// reference and leave_room only on the last. Desired membership
// survives a drop; the session's connected hook replays it.
type Rooms struct {
	session *Session

	mu   sync.Mutex
	refs map[ws.RoomID]int
}

func NewRooms(session *Session) *Rooms {
	r := &Rooms{
		session: session,
		refs:    make(map[ws.RoomID]int),
	}
	session.OnConnected(r.rejoinAll)
	return r
}

// Join subscribes to a room. Calling it again for the same room is a
// no-op on the wire. Safe to call while disconnected; the join is
// emitted once the session comes up.
func (r *Rooms) Join(room ws.RoomID) {
	r.mu.Lock()
	r.refs[room]++
	first := r.refs[room] == 1
	r.mu.Unlock()
	if first {
		r.session.Emit(ws.IncomingMessage{Type: ws.EventJoinRoom, RoomID: room.String()})
	}
}

// Leave drops one reference. The wire leave goes out only when no
// view holds the room anymore. Leaving a room never joined is a no-op.
func (r *Rooms) Leave(room ws.RoomID) {
	r.mu.Lock()
	n, ok := r.refs[room]
	if !ok {
		r.mu.Unlock()
		return
	}
	n--
	last := n == 0
	if last {
		delete(r.refs, room)
	} else {
		r.refs[room] = n
	}
	r.mu.Unlock()
	if last {
		r.session.Emit(ws.IncomingMessage{Type: ws.EventLeaveRoom, RoomID: room.String()})
	}
}

// Joined reports whether the session currently wants this room.
func (r *Rooms) Joined(room ws.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[room] > 0
}

func (r *Rooms) rejoinAll() {
	r.mu.Lock()
	rooms := make([]ws.RoomID, 0, len(r.refs))
	for room := range r.refs {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()
	for _, room := range rooms {
		r.session.Emit(ws.IncomingMessage{Type: ws.EventJoinRoom, RoomID: room.String()})
	}
}
