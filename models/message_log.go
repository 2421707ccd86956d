// models/message_log.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageLog struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"branchId"`
	RecordType      string     `gorm:"type:varchar(20);index" json:"recordType"` // appointment, customer, lead
	RecordID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"recordId"`
	TemplateID      *uuid.UUID `gorm:"type:uuid" json:"templateId,omitempty"`
	Type            string     `gorm:"type:varchar(20);index" json:"type"` // confirmation, reminder, feedback
	Channel         string     `gorm:"type:varchar(20)" json:"channel"`    // whatsapp, email
	Recipient       string     `json:"recipient"`
	Message         string     `gorm:"type:text" json:"message"`
	Status          string     `gorm:"type:varchar(20)" json:"status"` // sent, failed
	ErrorMessage    string     `gorm:"type:text" json:"errorMessage,omitempty"`
	ProviderID      string     `json:"providerId,omitempty"`
	// AppointmentDate is the visit time the message was about, so a
	// rescheduled visit is reminded again.
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
	SentAt          time.Time  `json:"sentAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (m *MessageLog) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
