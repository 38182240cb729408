package ws

import "github.com/civicdesk/internal/model"

type EventType string

// Client -> server events.
const (
	EventJoinRoom          EventType = "join_room"
	EventLeaveRoom         EventType = "leave_room"
	EventJoinNotifications EventType = "join_notifications"
)

// Server -> client events.
const (
	EventReceiveMessage   EventType = "receive_message"
	EventNotification     EventType = "notification"
	EventComplaintUpdated EventType = "complaint_updated"
	EventError            EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ComplaintUpdatedPayload is broadcast to a complaint room when its
// status changes, by either the timeline or the direct status path.
type ComplaintUpdatedPayload struct {
	ComplaintID string                `json:"complaint_id"`
	Status      model.ComplaintStatus `json:"status"`
}
