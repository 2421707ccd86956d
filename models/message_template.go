package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageConfirmation = "confirmation"
	MessageReminder     = "reminder"
	MessageFeedback     = "feedback"

	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// MessageTemplate is the branch-owned text for one message kind on one
// channel. Placeholders: [CustomerName], [AppointmentDate], [Department].
type MessageTemplate struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`
	Type     string    `gorm:"type:varchar(20);not null" json:"type"`
	Channel  string    `gorm:"type:varchar(20);not null" json:"channel"`
	Subject  string    `json:"subject,omitempty"`
	Message  string    `gorm:"type:text;not null" json:"message"`
	IsActive bool      `json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *MessageTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
