package ws

import "testing"

func TestRoomIDWireForm(t *testing.T) {
	if got := ComplaintRoom("c-42").String(); got != "complaint:c-42" {
		t.Errorf("Expected complaint:c-42, got %s", got)
	}
	if got := UserRoom("u-7").String(); got != "user:u-7" {
		t.Errorf("Expected user:u-7, got %s", got)
	}
}

func TestParseRoomIDRoundTrip(t *testing.T) {
	for _, room := range []RoomID{ComplaintRoom("abc"), UserRoom("def")} {
		parsed, err := ParseRoomID(room.String())
		if err != nil {
			t.Fatalf("ParseRoomID(%q): %v", room.String(), err)
		}
		if parsed != room {
			t.Errorf("Expected %v, got %v", room, parsed)
		}
	}
}

func TestParseRoomIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "complaint", "complaint:", "group:1", "user", ":x"} {
		if _, err := ParseRoomID(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}
