package model

import "time"

// Notification belongs to exactly one user. Read transitions only
// false -> true and never reverses.
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Message     string    `json:"message"`
	ComplaintID *string   `json:"complaint_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
