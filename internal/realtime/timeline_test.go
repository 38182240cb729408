package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/ws"
)

func offlineTimeline(t *testing.T, rest *Rest, complaintID string) *Timeline {
	t.Helper()
	s := NewSession("http://localhost:1", "u1", "tok")
	return NewTimeline(rest, s, complaintID)
}

func TestSubmitUpdateValidatesLocally(t *testing.T) {
	tl := offlineTimeline(t, nil, "c1")
	tl.Seed(model.StatusSubmitted, []model.TimelineEvent{{ID: "e1"}})

	if err := tl.SubmitUpdate(context.Background(), model.StatusInProgress, "   ", nil); err != ErrEmptyNotes {
		t.Errorf("Expected ErrEmptyNotes, got %v", err)
	}

	files := make([]Attachment, model.MaxTimelineAttachments+1)
	for i := range files {
		files[i] = Attachment{Name: "f", Reader: strings.NewReader("x")}
	}
	if err := tl.SubmitUpdate(context.Background(), model.StatusInProgress, "ok", files); err != ErrTooManyAttachments {
		t.Errorf("Expected ErrTooManyAttachments, got %v", err)
	}

	// Local state untouched by the rejected submissions.
	if tl.Status() != model.StatusSubmitted {
		t.Errorf("Expected status unchanged, got %s", tl.Status())
	}
	if got := len(tl.Events()); got != 1 {
		t.Errorf("Expected 1 event, got %d", got)
	}
}

func TestSubmitUpdateReplacesEventsWholesale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"timeline":[{"id":"e1","status":"submitted"},{"id":"e2","status":"in_progress"}]}}`))
	}))
	defer srv.Close()

	tl := offlineTimeline(t, NewRest(srv.URL), "c1")
	tl.Seed(model.StatusSubmitted, []model.TimelineEvent{{ID: "stale"}})

	err := tl.SubmitUpdate(context.Background(), model.StatusInProgress, "picked up", nil)
	if err != nil {
		t.Fatalf("SubmitUpdate: %v", err)
	}

	events := tl.Events()
	if len(events) != 2 || events[0].ID != "e1" || events[1].ID != "e2" {
		t.Errorf("Expected server timeline adopted, got %+v", events)
	}
	if tl.Status() != model.StatusInProgress {
		t.Errorf("Expected in_progress, got %s", tl.Status())
	}
}

func TestSubmitUpdateFailureLeavesStateUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"error":"not allowed"}`))
	}))
	defer srv.Close()

	tl := offlineTimeline(t, NewRest(srv.URL), "c1")
	tl.Seed(model.StatusSubmitted, []model.TimelineEvent{{ID: "e1"}})

	if err := tl.SubmitUpdate(context.Background(), model.StatusResolved, "done", nil); err == nil {
		t.Fatal("Expected error")
	}
	if tl.Status() != model.StatusSubmitted {
		t.Errorf("Expected status unchanged, got %s", tl.Status())
	}
	if got := len(tl.Events()); got != 1 {
		t.Errorf("Expected events unchanged, got %d", got)
	}
}

func TestLivePushUpdatesMatchingComplaintOnly(t *testing.T) {
	tl := offlineTimeline(t, nil, "c1")
	tl.Seed(model.StatusSubmitted, nil)

	other, _ := json.Marshal(ws.ComplaintUpdatedPayload{ComplaintID: "c9", Status: model.StatusClosed})
	tl.updated(other)
	if tl.Status() != model.StatusSubmitted {
		t.Errorf("Expected foreign push ignored, got %s", tl.Status())
	}

	mine, _ := json.Marshal(ws.ComplaintUpdatedPayload{ComplaintID: "c1", Status: model.StatusResolved})
	tl.updated(mine)
	if tl.Status() != model.StatusResolved {
		t.Errorf("Expected resolved, got %s", tl.Status())
	}
}

func TestSetStatus(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":"c1","status":"closed"}}`))
	}))
	defer srv.Close()

	tl := offlineTimeline(t, NewRest(srv.URL), "c1")
	if err := tl.SetStatus(context.Background(), model.StatusClosed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/complaints/c1/status" {
		t.Errorf("Unexpected request %s %s", gotMethod, gotPath)
	}
	if tl.Status() != model.StatusClosed {
		t.Errorf("Expected closed, got %s", tl.Status())
	}
}
