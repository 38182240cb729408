package model

import "testing"

func TestValidStatus(t *testing.T) {
	for _, s := range []ComplaintStatus{StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed} {
		if !ValidStatus(s) {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	for _, s := range []ComplaintStatus{"", "open", "SUBMITTED", "archived"} {
		if ValidStatus(s) {
			t.Errorf("Expected %q to be invalid", s)
		}
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role     Role
		timeline bool
		status   bool
	}{
		{RoleCitizen, false, false},
		{RoleWorker, true, false},
		{RoleAdmin, true, true},
	}
	for _, c := range cases {
		if got := c.role.CanUpdateTimeline(); got != c.timeline {
			t.Errorf("%s.CanUpdateTimeline: expected %v, got %v", c.role, c.timeline, got)
		}
		if got := c.role.CanSetStatus(); got != c.status {
			t.Errorf("%s.CanSetStatus: expected %v, got %v", c.role, c.status, got)
		}
	}
}

func TestChatMessageClassification(t *testing.T) {
	me := "u1"
	empty := ""

	system := ChatMessage{}
	if !system.IsSystem() {
		t.Error("Expected message without sender to be system")
	}
	if system.IsMine("u1") {
		t.Error("System messages are never mine")
	}

	emptySender := ChatMessage{SenderID: &empty}
	if !emptySender.IsSystem() {
		t.Error("Expected empty sender id to count as system")
	}

	mine := ChatMessage{SenderID: &me}
	if !mine.IsMine("u1") {
		t.Error("Expected message to be mine")
	}
	if mine.IsMine("u2") {
		t.Error("Expected message not to be u2's")
	}
}
