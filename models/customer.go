package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`

	ContactID          uuid.UUID `gorm:"type:uuid;index;not null" json:"contactId"`
	ContactFullName    string    `json:"contactFullName"`
	ContactPhoneNumber string    `json:"contactPhoneNumber"`
	ContactEmail       string    `json:"contactEmail,omitempty"`

	LeadSource      string         `json:"leadSource"`
	Department      string         `gorm:"index" json:"department"`
	Status          CustomerStatus `gorm:"type:varchar(40);index;not null" json:"status"`
	AppointmentDate time.Time      `json:"appointmentDate"`

	Notes         []Note         `gorm:"type:jsonb;serializer:json" json:"notes"`
	Attachments   []Attachment   `gorm:"type:jsonb;serializer:json" json:"attachments"`
	Comments      []Comment      `gorm:"type:jsonb;serializer:json" json:"comments"`
	StatusHistory []HistoryEntry `gorm:"type:jsonb;serializer:json" json:"statusHistory"`

	// Set when the customer came out of a lead conversion.
	LeadID *uuid.UUID `gorm:"type:uuid;index" json:"leadId,omitempty"`

	Appointments []Appointment `gorm:"foreignKey:CustomerID" json:"appointments,omitempty"`

	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return
}

func (c *Customer) RecordID() uuid.UUID { return c.ID }
func (c *Customer) BranchRef() uuid.UUID { return c.BranchID }
func (c *Customer) CurrentVersion() int { return c.Version }
func (c *Customer) SetVersion(v int) { c.Version = v }
func (c *Customer) NoteList() *[]Note { return &c.Notes }
func (c *Customer) AttachmentList() *[]Attachment { return &c.Attachments }
func (c *Customer) CommentList() *[]Comment { return &c.Comments }
