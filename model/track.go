package model

import "time"

// ModerationState describes where a track sits in the review workflow.
type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateRejected ModerationState = "rejected"
	StateDeleted  ModerationState = "deleted"
)

// Valid reports whether s is one of the known moderation states.
func (s ModerationState) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected, StateDeleted:
		return true
	}
	return false
}

// Track represents one uploaded audio file in the catalog.
//
// ID is the generated storage filename token. It is assigned once at
// ingestion time and never reused, even after the track is deleted.
type Track struct {
	ID             string          `json:"filename"`
	DisplayName    string          `json:"name"`
	StoredFilename string          `json:"-"` // actual blob name, not exposed in API directly
	Uploader       string          `json:"uploader"`
	SizeBytes      int64           `json:"-"`
	MimeType       string          `json:"-"`
	Converted      bool            `json:"converted"`
	State          ModerationState `json:"state"`
	UploadedAt     time.Time       `json:"uploadDate"`
}

// Clone returns an independent copy so callers never share the registry's
// mutable record.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
