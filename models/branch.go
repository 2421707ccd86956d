package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Branch is a clinic location. Every record is partitioned by BranchID.
type Branch struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"not null" json:"name"`
	Address  string    `json:"address"`
	Timezone string    `gorm:"default:'UTC'" json:"timezone"`

	WhatsAppNotifications bool `json:"whatsAppNotifications"`
	EmailNotifications    bool `json:"emailNotifications"`

	// Tenant-defined intermediate lead statuses (Hot, Warm, ...).
	LeadStatuses []string `gorm:"type:jsonb;serializer:json" json:"leadStatuses"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Branch) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}

// Location resolves the branch timezone, falling back to UTC.
func (b *Branch) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
