package ws

import (
	"fmt"
	"strings"
)

// RoomKind tags the two room namespaces the hub serves.
type RoomKind uint8

const (
	// RoomComplaint scopes delivery to viewers of one complaint.
	RoomComplaint RoomKind = iota
	// RoomUser scopes delivery to one user's notification feed.
	RoomUser
)

// RoomID identifies a logical delivery room. Constructing it through
// ComplaintRoom/UserRoom rules out malformed ad-hoc strings.
type RoomID struct {
	Kind RoomKind
	ID   string
}

// ComplaintRoom returns the room for a complaint's chat and status events.
func ComplaintRoom(complaintID string) RoomID {
	return RoomID{Kind: RoomComplaint, ID: complaintID}
}

// UserRoom returns the room for a user's notification feed.
func UserRoom(userID string) RoomID {
	return RoomID{Kind: RoomUser, ID: userID}
}

// String renders the wire form: "complaint:<id>" or "user:<id>".
func (r RoomID) String() string {
	switch r.Kind {
	case RoomComplaint:
		return "complaint:" + r.ID
	case RoomUser:
		return "user:" + r.ID
	}
	return "invalid:" + r.ID
}

// ParseRoomID parses the wire form back into a RoomID.
func ParseRoomID(s string) (RoomID, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return RoomID{}, fmt.Errorf("malformed room id %q", s)
	}
	switch kind {
	case "complaint":
		return ComplaintRoom(id), nil
	case "user":
		return UserRoom(id), nil
	}
	return RoomID{}, fmt.Errorf("unknown room kind %q", kind)
}
