package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Appointment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID   uuid.UUID `gorm:"type:uuid;index;not null" json:"branchId"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null" json:"customerId"`

	ContactFullName    string `json:"contactFullName"`
	ContactPhoneNumber string `json:"contactPhoneNumber"`

	Department      string            `json:"department"`
	AppointmentDate time.Time         `gorm:"index" json:"appointmentDate"`
	Status          AppointmentStatus `gorm:"type:varchar(40);index;not null" json:"status"`
	Notes           string            `gorm:"type:text" json:"notes,omitempty"`

	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeSave stores appointment times in UTC so range queries compare
// like with like on every driver.
func (a *Appointment) BeforeSave(tx *gorm.DB) (err error) {
	a.AppointmentDate = a.AppointmentDate.UTC()
	return
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return
}
