package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Lead struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`

	// Weak reference; the name and phone are a snapshot taken at creation.
	ContactID          uuid.UUID `gorm:"type:uuid;index;not null" json:"contactId"`
	ContactFullName    string    `json:"contactFullName"`
	ContactPhoneNumber string    `json:"contactPhoneNumber"`

	LeadSource        string     `json:"leadSource"`
	ServiceOfInterest string     `json:"serviceOfInterest"`
	Status            LeadStatus `gorm:"type:varchar(40);index;not null" json:"status"`
	AssignedAgent     string     `gorm:"index" json:"assignedAgent"`
	Date              time.Time  `json:"date"`
	Note              string     `gorm:"type:text" json:"note,omitempty"`

	NotesData     []Note         `gorm:"type:jsonb;serializer:json" json:"notesData"`
	Attachments   []Attachment   `gorm:"type:jsonb;serializer:json" json:"attachments"`
	Comments      []Comment      `gorm:"type:jsonb;serializer:json" json:"comments"`
	StatusHistory []HistoryEntry `gorm:"type:jsonb;serializer:json" json:"statusHistory"`

	ConvertedCustomerID *uuid.UUID `gorm:"type:uuid" json:"convertedCustomerId,omitempty"`

	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return
}

func (l *Lead) RecordID() uuid.UUID { return l.ID }
func (l *Lead) BranchRef() uuid.UUID { return l.BranchID }
func (l *Lead) CurrentVersion() int { return l.Version }
func (l *Lead) SetVersion(v int) { l.Version = v }
func (l *Lead) NoteList() *[]Note { return &l.NotesData }
func (l *Lead) AttachmentList() *[]Attachment { return &l.Attachments }
func (l *Lead) CommentList() *[]Comment { return &l.Comments }
