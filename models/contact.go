package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Contact struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`

	FullName             string     `gorm:"not null" json:"fullName"`
	PhoneNumber          string     `gorm:"not null;index" json:"phoneNumber"`
	SecondaryPhoneNumber string     `gorm:"index" json:"secondaryPhoneNumber,omitempty"`
	Email                string     `json:"email,omitempty"`
	Address              string     `json:"address,omitempty"`
	Source               string     `json:"source"`
	InstagramURL         string     `json:"instagramUrl,omitempty"`
	Birthday             *time.Time `json:"birthday,omitempty"`

	Notes       []Note         `gorm:"type:jsonb;serializer:json" json:"notes"`
	Attachments []Attachment   `gorm:"type:jsonb;serializer:json" json:"attachments"`
	Comments    []Comment      `gorm:"type:jsonb;serializer:json" json:"comments"`
	History     []HistoryEntry `gorm:"type:jsonb;serializer:json" json:"history"`

	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Contact) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return
}

// Phones returns the contact's non-empty numbers.
func (c *Contact) Phones() []string {
	phones := []string{c.PhoneNumber}
	if c.SecondaryPhoneNumber != "" {
		phones = append(phones, c.SecondaryPhoneNumber)
	}
	return phones
}

const (
	PhoneKindPrimary   = "primary"
	PhoneKindSecondary = "secondary"
)

// ContactPhone holds one row per contact number. The primary key on Phone
// enforces that no two contacts share a primary or secondary number.
type ContactPhone struct {
	Phone     string    `gorm:"primaryKey" json:"phone"`
	ContactID uuid.UUID `gorm:"type:uuid;index;not null" json:"contactId"`
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind"`
}

func (c *Contact) RecordID() uuid.UUID { return c.ID }
func (c *Contact) BranchRef() uuid.UUID { return c.BranchID }
func (c *Contact) CurrentVersion() int { return c.Version }
func (c *Contact) SetVersion(v int) { c.Version = v }
func (c *Contact) NoteList() *[]Note { return &c.Notes }
func (c *Contact) AttachmentList() *[]Attachment { return &c.Attachments }
func (c *Contact) CommentList() *[]Comment { return &c.Comments }
