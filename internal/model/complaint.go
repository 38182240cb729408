package model

import "time"

type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "submitted"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusClosed     ComplaintStatus = "closed"
)

// ValidStatus reports whether s is a known complaint status.
func ValidStatus(s ComplaintStatus) bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type Complaint struct {
	ID          string          `json:"id"`
	CitizenID   string          `json:"citizen_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Status      ComplaintStatus `json:"status"`
	AssigneeID  *string         `json:"assignee_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Timeline    []TimelineEvent `json:"timeline,omitempty"`
}

// TimelineEvent is one entry in a complaint's status/timeline feed.
// Ordering is assigned by the server; clients adopt the full returned
// list after every confirmed mutation.
type TimelineEvent struct {
	ID          string          `json:"id"`
	ComplaintID string          `json:"complaint_id"`
	Status      ComplaintStatus `json:"status"`
	Notes       string          `json:"notes"`
	ActorID     string          `json:"actor_id"`
	Actor       *UserPublic     `json:"actor,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Attachment is a stored file reference on a timeline event.
type Attachment struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FileSize int64  `json:"file_size"`
}

// MaxTimelineAttachments caps attachments per timeline update. Enforced
// both client-side (before any network call) and server-side.
const MaxTimelineAttachments = 5
