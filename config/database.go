package config

import (
	"fmt"
	"time"

	"clinic-crm-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by production and test connections. TranslateError
// turns driver constraint failures into gorm.ErrDuplicatedKey and
// gorm.ErrForeignKeyViolated.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Minute)

	return db, nil
}

// Migrate creates the schema and the constraints that back the phone
// uniqueness and single-open-lead rules.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Contact{},
		&models.ContactPhone{},
		&models.Lead{},
		&models.Customer{},
		&models.Appointment{},
		&models.Ticket{},
		&models.Service{},
		&models.MessageTemplate{},
		&models.MessageLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_one_open_per_contact ON leads (contact_id)
			WHERE status NOT IN ('Converted', 'Lost', 'No-Show', 'Re-follow') AND deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_templates_branch_type_channel
			ON message_templates (branch_id, type, channel) WHERE deleted_at IS NULL`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
