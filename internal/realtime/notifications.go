package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/ws"
)

// Ledger is the per-user notification list. It initializes only once
// credentials are settled, keeps records newest first, prepends live
// pushes, and marks reads optimistically: the local flip happens first
// and a failed server call is logged, never rolled back. The unread
// count is always derived from the list, never stored.
type Ledger struct {
	rest    *Rest
	session *Session

	mu       sync.Mutex
	started  bool
	items    []model.Notification
	onChange func()
	off      func()
}

func NewLedger(rest *Rest, session *Session) *Ledger {
	return &Ledger{rest: rest, session: session}
}

func (l *Ledger) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Start fetches history and attaches the live feed. Calling it before
// login would race the token, so callers invoke it after auth settles;
// repeated calls are no-ops. A failed history fetch degrades to an
// empty list so live pushes still land.
func (l *Ledger) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	items, err := l.rest.Notifications(ctx)
	if err != nil {
		logger.Errorf("ledger: history fetch: %v", err)
		items = nil
	}

	l.mu.Lock()
	l.items = items
	l.off = l.session.On(ws.EventNotification, l.receive)
	l.mu.Unlock()
	l.notify()
}

// Items returns a snapshot, newest first.
func (l *Ledger) Items() []model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Notification, len(l.items))
	copy(out, l.items)
	return out
}

// UnreadCount is computed from the list on every call.
func (l *Ledger) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.items {
		if !l.items[i].Read {
			n++
		}
	}
	return n
}

// MarkRead flips one notification locally, then tells the server.
func (l *Ledger) MarkRead(ctx context.Context, id string) {
	l.mu.Lock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Read = true
			break
		}
	}
	l.mu.Unlock()
	l.notify()

	if err := l.rest.MarkNotificationRead(ctx, id); err != nil {
		logger.Errorf("ledger: mark read %s: %v", id, err)
	}
}

// MarkAllRead flips everything unread. Running it twice is harmless.
func (l *Ledger) MarkAllRead(ctx context.Context) {
	l.mu.Lock()
	for i := range l.items {
		l.items[i].Read = true
	}
	l.mu.Unlock()
	l.notify()

	if err := l.rest.MarkAllNotificationsRead(ctx); err != nil {
		logger.Errorf("ledger: mark all read: %v", err)
	}
}

// Close detaches the live feed.
func (l *Ledger) Close() {
	l.mu.Lock()
	off := l.off
	l.off = nil
	l.mu.Unlock()
	if off != nil {
		off()
	}
}

// receive prepends a live push. Pushes from lean code paths may lack
// an id or timestamp; those are filled in locally so list rendering
// and mark-read keep working.
func (l *Ledger) receive(raw json.RawMessage) {
	var n model.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		logger.Errorf("ledger: bad payload: %v", err)
		return
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	l.mu.Lock()
	l.items = append([]model.Notification{n}, l.items...)
	l.mu.Unlock()
	l.notify()
}

func (l *Ledger) notify() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}
