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

// Timeline reconciles one complaint's status history with the server.
// Every confirmed mutation replaces the local event list wholesale
// with the list the server returns; a failed submission leaves the
// local state exactly as it was.
type Timeline struct {
	rest    *Rest
	session *Session

	mu          sync.Mutex
	complaintID string
	status      model.ComplaintStatus
	events      []model.TimelineEvent
	onChange    func()
	off         func()
}

func NewTimeline(rest *Rest, session *Session, complaintID string) *Timeline {
	t := &Timeline{
		rest:        rest,
		session:     session,
		complaintID: complaintID,
	}
	t.off = session.On(ws.EventComplaintUpdated, t.updated)
	return t
}

func (t *Timeline) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Seed installs state fetched elsewhere, typically from the complaint
// detail endpoint, so the reconciler starts from the server's truth.
func (t *Timeline) Seed(status model.ComplaintStatus, events []model.TimelineEvent) {
	t.mu.Lock()
	t.status = status
	t.events = events
	t.mu.Unlock()
	t.notify()
}

// SubmitUpdate validates locally, then submits the status change with
// notes and attachments. On success the server's rebuilt timeline
// replaces the local one.
func (t *Timeline) SubmitUpdate(ctx context.Context, status model.ComplaintStatus, notes string, files []Attachment) error {
	if strings.TrimSpace(notes) == "" {
		return ErrEmptyNotes
	}
	if len(files) > model.MaxTimelineAttachments {
		return ErrTooManyAttachments
	}
	events, err := t.rest.UpdateTimeline(ctx, t.complaintID, status, notes, files)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.status = status
	t.events = events
	t.mu.Unlock()
	t.notify()
	return nil
}

// SetStatus changes the status directly, with no timeline entry.
func (t *Timeline) SetStatus(ctx context.Context, status model.ComplaintStatus) error {
	if err := t.rest.UpdateStatus(ctx, t.complaintID, status); err != nil {
		return err
	}
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
	t.notify()
	return nil
}

func (t *Timeline) Status() model.ComplaintStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Events returns a snapshot of the timeline, oldest first.
func (t *Timeline) Events() []model.TimelineEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.TimelineEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Close detaches from the live feed.
func (t *Timeline) Close() {
	t.mu.Lock()
	off := t.off
	t.off = nil
	t.mu.Unlock()
	if off != nil {
		off()
	}
}

// updated applies status pushes from other participants' changes.
func (t *Timeline) updated(raw json.RawMessage) {
	var p ws.ComplaintUpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.Errorf("timeline: bad payload: %v", err)
		return
	}
	t.mu.Lock()
	if p.ComplaintID != t.complaintID {
		t.mu.Unlock()
		return
	}
	t.status = p.Status
	t.mu.Unlock()
	t.notify()
}

func (t *Timeline) notify() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
