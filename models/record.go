package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a free-text note attached to a contact, lead, customer or ticket.
type Note struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	User string    `json:"user"`
	Date time.Time `json:"date"`
}

type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Comment struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	User string    `json:"user"`
	Date time.Time `json:"date"`
}

// HistoryEntry is one audit row. Entries are only ever prepended.
type HistoryEntry struct {
	Field string    `json:"field"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	User  string    `json:"user"`
	Date  time.Time `json:"date"`
}

// Annotated is implemented by every record that carries notes, attachments
// and comments.
type Annotated interface {
	RecordID() uuid.UUID
	BranchRef() uuid.UUID
	CurrentVersion() int
	SetVersion(v int)
	NoteList() *[]Note
	AttachmentList() *[]Attachment
	CommentList() *[]Comment
}
