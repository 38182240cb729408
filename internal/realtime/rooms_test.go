package realtime

import (
	"testing"
	"time"

	"github.com/civicdesk/internal/ws"
)

func countFrames(frames []ws.IncomingMessage, typ ws.EventType, roomID string) int {
	n := 0
	for _, f := range frames {
		if f.Type == typ && f.RoomID == roomID {
			n++
		}
	}
	return n
}

func TestJoinIsDeduplicated(t *testing.T) {
	p := newFakePortal(t)
	s := NewSession(p.srv.URL, "u1", "tok")
	defer s.Close()
	rooms := NewRooms(s)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, s, StateConnected)
	p.waitFrames(t, 1) // join_notifications

	room := ws.ComplaintRoom("c1")
	rooms.Join(room)
	rooms.Join(room)
	rooms.Join(room)

	frames := p.waitFrames(t, 2)
	time.Sleep(50 * time.Millisecond)
	frames = p.waitFrames(t, len(frames))
	if got := countFrames(frames, ws.EventJoinRoom, "complaint:c1"); got != 1 {
		t.Errorf("Expected exactly 1 join frame, got %d", got)
	}
	if !rooms.Joined(room) {
		t.Error("Expected room to be joined")
	}
}

func TestLeaveOnlyOnLastReference(t *testing.T) {
	p := newFakePortal(t)
	s := NewSession(p.srv.URL, "u1", "tok")
	defer s.Close()
	rooms := NewRooms(s)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, s, StateConnected)

	room := ws.ComplaintRoom("c1")
	rooms.Join(room)
	rooms.Join(room)
	rooms.Leave(room)
	if !rooms.Joined(room) {
		t.Error("Expected room still joined after one of two leaves")
	}
	rooms.Leave(room)
	if rooms.Joined(room) {
		t.Error("Expected room left after final leave")
	}

	frames := p.waitFrames(t, 3) // join_notifications + join + leave
	if got := countFrames(frames, ws.EventLeaveRoom, "complaint:c1"); got != 1 {
		t.Errorf("Expected exactly 1 leave frame, got %d", got)
	}
}

func TestLeaveUnjoinedRoomIsNoop(t *testing.T) {
	s := NewSession("http://localhost:1", "u1", "tok")
	rooms := NewRooms(s)
	rooms.Leave(ws.ComplaintRoom("never"))
	if rooms.Joined(ws.ComplaintRoom("never")) {
		t.Error("Expected room to stay unjoined")
	}
}

func TestMembershipReplayedOnConnect(t *testing.T) {
	p := newFakePortal(t)
	s := NewSession(p.srv.URL, "u1", "tok")
	defer s.Close()
	rooms := NewRooms(s)

	// Joined while offline: nothing goes out yet, but the intent is kept.
	rooms.Join(ws.ComplaintRoom("c1"))
	if !rooms.Joined(ws.ComplaintRoom("c1")) {
		t.Fatal("Expected offline join to be tracked")
	}

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, s, StateConnected)

	frames := p.waitFrames(t, 2)
	if got := countFrames(frames, ws.EventJoinRoom, "complaint:c1"); got != 1 {
		t.Errorf("Expected join replayed on connect, got %d frames: %v", got, frames)
	}
}
