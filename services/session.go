package services

import (
	"time"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settings is the per-session configuration every core operation may need.
type Settings struct {
	DefaultRegion string
	Location      *time.Location
}

// SessionContext identifies the caller of a core operation. It is passed
// explicitly instead of being read from ambient state.
type SessionContext struct {
	User        string
	UserID      uuid.UUID
	Role        string
	BranchScope []uuid.UUID
	Settings    Settings
}

func (s SessionContext) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// CanAccess reports whether records of branchID are visible to the caller.
// Admins are bounded by their branches like everyone else; the role only
// unlocks administrative operations inside them.
func (s SessionContext) CanAccess(branchID uuid.UUID) bool {
	for _, id := range s.BranchScope {
		if id == branchID {
			return true
		}
	}
	return false
}

// Scope restricts a query on a branch-partitioned table to the caller's
// branches.
func (s SessionContext) Scope(db *gorm.DB) *gorm.DB {
	if len(s.BranchScope) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("branch_id IN ?", s.BranchScope)
}

// ResolveBranch picks the branch a new record goes to. An explicit branch
// must be in scope; otherwise a caller with a single branch gets that one.
func (s SessionContext) ResolveBranch(requested uuid.UUID) (uuid.UUID, error) {
	if requested != uuid.Nil {
		if !s.CanAccess(requested) {
			return uuid.Nil, ErrForbidden
		}
		return requested, nil
	}
	if len(s.BranchScope) == 1 {
		return s.BranchScope[0], nil
	}
	return uuid.Nil, validationErr("branchId", "is required")
}

// Actor is the name written into history and notes.
func (s SessionContext) Actor() string {
	if s.User != "" {
		return s.User
	}
	return "system"
}

func (s SessionContext) region() string {
	if s.Settings.DefaultRegion != "" {
		return s.Settings.DefaultRegion
	}
	return "US"
}

func (s SessionContext) location() *time.Location {
	if s.Settings.Location != nil {
		return s.Settings.Location
	}
	return time.UTC
}
