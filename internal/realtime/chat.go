package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/ws"
)

// ChatThread holds the message list for the complaint currently being
// viewed. Open swaps the whole thread: history is replaced wholesale
// from the server and the live subscription moves to the new room.
// Messages for any other complaint, and anything arriving after Close,
// are dropped.
type ChatThread struct {
	rest    *Rest
	session *Session
	rooms   *Rooms
	userID  string

	mu          sync.Mutex
	complaintID string
	messages    []model.ChatMessage
	onChange    func()
	off         func()
}

func NewChatThread(rest *Rest, session *Session, rooms *Rooms, userID string) *ChatThread {
	return &ChatThread{
		rest:    rest,
		session: session,
		rooms:   rooms,
		userID:  userID,
	}
}

// OnChange registers a callback fired after every mutation of the
// message list. At most one callback; the last registration wins.
func (t *ChatThread) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Open switches the thread to a complaint: leaves the previous room,
// joins the new one, and loads history. The local list is only
// replaced once the fetch succeeds, and only if the user has not
// navigated away in the meantime.
func (t *ChatThread) Open(ctx context.Context, complaintID string) error {
	if complaintID == "" {
		return ErrMissingComplaint
	}

	t.mu.Lock()
	if t.off != nil {
		t.off()
		t.off = nil
	}
	if t.complaintID != "" {
		t.rooms.Leave(ws.ComplaintRoom(t.complaintID))
	}
	t.complaintID = complaintID
	t.messages = nil
	t.mu.Unlock()

	t.rooms.Join(ws.ComplaintRoom(complaintID))
	off := t.session.On(ws.EventReceiveMessage, t.receive)
	t.mu.Lock()
	t.off = off
	t.mu.Unlock()

	history, err := t.rest.ChatHistory(ctx, complaintID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.complaintID != complaintID {
		// Stale fetch, the user already moved on.
		t.mu.Unlock()
		return nil
	}
	t.messages = history
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Send posts a message to the open thread. The message is not appended
// locally; it comes back over the room like everyone else's copy.
func (t *ChatThread) Send(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	t.mu.Lock()
	id := t.complaintID
	t.mu.Unlock()
	if id == "" {
		return ErrMissingComplaint
	}
	return t.rest.SendChatMessage(ctx, id, body)
}

// Messages returns a snapshot of the thread, oldest first.
func (t *ChatThread) Messages() []model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Kind classifies a message for rendering from this user's viewpoint.
type Kind string

const (
	KindMine   Kind = "mine"
	KindTheirs Kind = "theirs"
	KindSystem Kind = "system"
)

func (t *ChatThread) Classify(m *model.ChatMessage) Kind {
	switch {
	case m.IsSystem():
		return KindSystem
	case m.IsMine(t.userID):
		return KindMine
	default:
		return KindTheirs
	}
}

// Close leaves the room and stops the live feed. Events already in
// flight are discarded, not applied.
func (t *ChatThread) Close() {
	t.mu.Lock()
	if t.off != nil {
		t.off()
		t.off = nil
	}
	id := t.complaintID
	t.complaintID = ""
	t.messages = nil
	t.mu.Unlock()
	if id != "" {
		t.rooms.Leave(ws.ComplaintRoom(id))
	}
}

func (t *ChatThread) receive(raw json.RawMessage) {
	var m model.ChatMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Errorf("chat: bad message payload: %v", err)
		return
	}
	t.mu.Lock()
	if t.complaintID == "" || m.ComplaintID != t.complaintID {
		t.mu.Unlock()
		return
	}
	t.messages = append(t.messages, m)
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
