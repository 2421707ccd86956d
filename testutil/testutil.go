package testutil

import (
	"fmt"
	"testing"
	"time"

	"clinic-crm-backend/config"
	"clinic-crm-backend/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the production
// schema. The pool is pinned to one connection so the whole test sees the
// same database; code under test must use the transaction handle inside
// db.Transaction or it will block.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	dsn := fmt.Sprintf("file:%s?mode=memory&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CreateBranch inserts a branch with WhatsApp notifications on.
func CreateBranch(t *testing.T, db *gorm.DB, customStatuses ...string) *models.Branch {
	t.Helper()
	branch := &models.Branch{
		Name:                  gofakeit.Company() + " Clinic",
		Timezone:              "UTC",
		WhatsAppNotifications: true,
		LeadStatuses:          customStatuses,
	}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("Failed to create branch: %v", err)
	}
	return branch
}

var phoneSeq = 0

// NextPhone returns a distinct valid E.164 number on each call.
func NextPhone() string {
	phoneSeq++
	return fmt.Sprintf("+97150%07d", 1000000+phoneSeq)
}

// CreateContact inserts a contact and its phone rows directly.
func CreateContact(t *testing.T, db *gorm.DB, branchID uuid.UUID) *models.Contact {
	t.Helper()
	contact := &models.Contact{
		BranchID:    branchID,
		FullName:    gofakeit.Name(),
		PhoneNumber: NextPhone(),
		Source:      "Walk-in",
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contact).Error; err != nil {
			return err
		}
		return tx.Create(&models.ContactPhone{
			Phone:     contact.PhoneNumber,
			ContactID: contact.ID,
			Kind:      models.PhoneKindPrimary,
		}).Error
	})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	return contact
}

// FixedClock returns a clock function pinned to at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
