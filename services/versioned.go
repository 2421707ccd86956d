package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// saveVersioned writes every column of model guarded by the version the
// caller last saw. model must already carry the incremented version.
func saveVersioned(tx *gorm.DB, entity string, id uuid.UUID, expected int, model any) error {
	res := tx.Model(model).
		Select("*").
		Omit("created_at", clause.Associations).
		Where("version = ?", expected).
		Updates(model)
	if res.Error != nil {
		return ClassifyDBError("update "+entity, res.Error)
	}
	if res.RowsAffected == 0 {
		return &StaleWriteError{Entity: entity, ID: id, Expected: expected}
	}
	return nil
}

// checkVersion compares the caller's version with the stored one. A zero
// expected version means the caller is a system path that already holds the
// freshest copy.
func checkVersion(entity string, id uuid.UUID, stored, expected int) error {
	if expected != 0 && expected != stored {
		return &StaleWriteError{Entity: entity, ID: id, Expected: expected}
	}
	return nil
}
