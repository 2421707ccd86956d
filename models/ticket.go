package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Ticket struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`

	CustomerName string `gorm:"not null" json:"customerName"`
	Status       string `gorm:"type:varchar(40);index;not null" json:"status"`
	Priority     string `gorm:"type:varchar(20);not null" json:"priority"`
	AssignedTo   string `gorm:"index" json:"assignedTo"`
	Department   string `json:"department"`
	Subject      string `gorm:"not null" json:"subject"`
	Description  string `gorm:"type:text" json:"description"`

	Notes       []Note         `gorm:"type:jsonb;serializer:json" json:"notes"`
	Attachments []Attachment   `gorm:"type:jsonb;serializer:json" json:"attachments"`
	Comments    []Comment      `gorm:"type:jsonb;serializer:json" json:"comments"`
	History     []HistoryEntry `gorm:"type:jsonb;serializer:json" json:"history"`

	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return
}

func (t *Ticket) RecordID() uuid.UUID { return t.ID }
func (t *Ticket) BranchRef() uuid.UUID { return t.BranchID }
func (t *Ticket) CurrentVersion() int { return t.Version }
func (t *Ticket) SetVersion(v int) { t.Version = v }
func (t *Ticket) NoteList() *[]Note { return &t.Notes }
func (t *Ticket) AttachmentList() *[]Attachment { return &t.Attachments }
func (t *Ticket) CommentList() *[]Comment { return &t.Comments }
