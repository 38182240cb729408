package realtime

import "errors"

// Validation faults are rejected locally, before any network call, and
// are meant to be shown to the user inline.
var (
	ErrEmptyMessage       = errors.New("message must not be empty")
	ErrEmptyNotes         = errors.New("notes must not be empty")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrMissingComplaint   = errors.New("complaint id required")
	ErrMissingCredentials = errors.New("user id and token required")
)
