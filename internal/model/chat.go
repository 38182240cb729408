package model

import "time"

// ChatMessage belongs to exactly one complaint thread. SenderID is nil for
// system/automated messages; those are never classified as the viewer's own.
type ChatMessage struct {
	ID          string      `json:"id"`
	ComplaintID string      `json:"complaint_id"`
	SenderID    *string     `json:"sender_id,omitempty"`
	Body        string      `json:"body"`
	CreatedAt   time.Time   `json:"created_at"`
	Sender      *UserPublic `json:"sender,omitempty"`
}

// IsSystem reports whether the message has no sender.
func (m *ChatMessage) IsSystem() bool {
	return m.SenderID == nil || *m.SenderID == ""
}

// IsMine reports whether the message was sent by userID. System messages
// are never mine.
func (m *ChatMessage) IsMine(userID string) bool {
	return !m.IsSystem() && *m.SenderID == userID
}
