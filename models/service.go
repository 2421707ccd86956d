package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is an entry in a branch's catalog of bookable clinic services.
// Department names used on customers and appointments come from here.
type Service struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID    uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`
	Name        string    `gorm:"not null" json:"name"`
	Department  string    `gorm:"not null;index" json:"department"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"` // in minutes
	IsActive    bool      `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}
