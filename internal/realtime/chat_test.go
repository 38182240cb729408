package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/ws"
)

func offlineThread(t *testing.T, rest *Rest) *ChatThread {
	t.Helper()
	s := NewSession("http://localhost:1", "u1", "tok")
	return NewChatThread(rest, s, NewRooms(s), "u1")
}

func historyServer(t *testing.T, history string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"messages":` + history + `}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	thread := offlineThread(t, nil)
	for _, body := range []string{"", "   ", "\n\t"} {
		if err := thread.Send(context.Background(), body); err != ErrEmptyMessage {
			t.Errorf("body %q: expected ErrEmptyMessage, got %v", body, err)
		}
	}
}

func TestSendWithoutOpenThread(t *testing.T) {
	thread := offlineThread(t, nil)
	if err := thread.Send(context.Background(), "hello"); err != ErrMissingComplaint {
		t.Errorf("Expected ErrMissingComplaint, got %v", err)
	}
}

func TestOpenReplacesHistoryWholesale(t *testing.T) {
	srv := historyServer(t, `[{"id":"m1","complaint_id":"c1","body":"first"},{"id":"m2","complaint_id":"c1","body":"second"}]`)
	thread := offlineThread(t, NewRest(srv.URL))

	if err := thread.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	msgs := thread.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("Unexpected history: %+v", msgs)
	}

	// Opening again must replace, not append.
	if err := thread.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := len(thread.Messages()); got != 2 {
		t.Errorf("Expected 2 messages after reopen, got %d", got)
	}
}

func TestOpenRequiresComplaintID(t *testing.T) {
	thread := offlineThread(t, nil)
	if err := thread.Open(context.Background(), ""); err != ErrMissingComplaint {
		t.Errorf("Expected ErrMissingComplaint, got %v", err)
	}
}

func TestReceiveAppendsOnlyActiveComplaint(t *testing.T) {
	srv := historyServer(t, `[]`)
	thread := offlineThread(t, NewRest(srv.URL))
	if err := thread.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	mine, _ := json.Marshal(model.ChatMessage{ID: "m1", ComplaintID: "c1", Body: "for me"})
	other, _ := json.Marshal(model.ChatMessage{ID: "m2", ComplaintID: "c9", Body: "not mine"})
	thread.receive(mine)
	thread.receive(other)

	msgs := thread.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("Expected only the active complaint's message, got %+v", msgs)
	}
}

func TestReceiveAfterCloseIsDiscarded(t *testing.T) {
	srv := historyServer(t, `[]`)
	thread := offlineThread(t, NewRest(srv.URL))
	if err := thread.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	thread.Close()

	late, _ := json.Marshal(model.ChatMessage{ID: "m1", ComplaintID: "c1", Body: "late"})
	thread.receive(late)

	if got := len(thread.Messages()); got != 0 {
		t.Errorf("Expected late event discarded, got %d messages", got)
	}
}

func TestClassify(t *testing.T) {
	thread := offlineThread(t, nil)
	me := "u1"
	them := "u2"

	cases := []struct {
		msg  model.ChatMessage
		want Kind
	}{
		{model.ChatMessage{SenderID: &me}, KindMine},
		{model.ChatMessage{SenderID: &them}, KindTheirs},
		{model.ChatMessage{}, KindSystem},
	}
	for _, c := range cases {
		if got := thread.Classify(&c.msg); got != c.want {
			t.Errorf("Expected %s, got %s", c.want, got)
		}
	}
}

func TestOpenSwitchesRoomMembership(t *testing.T) {
	srv := historyServer(t, `[]`)
	s := NewSession("http://localhost:1", "u1", "tok")
	rooms := NewRooms(s)
	thread := NewChatThread(NewRest(srv.URL), s, rooms, "u1")

	if err := thread.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !rooms.Joined(ws.ComplaintRoom("c1")) {
		t.Error("Expected c1 joined")
	}

	if err := thread.Open(context.Background(), "c2"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rooms.Joined(ws.ComplaintRoom("c1")) {
		t.Error("Expected c1 left after switching")
	}
	if !rooms.Joined(ws.ComplaintRoom("c2")) {
		t.Error("Expected c2 joined")
	}

	thread.Close()
	if rooms.Joined(ws.ComplaintRoom("c2")) {
		t.Error("Expected c2 left after close")
	}
}
