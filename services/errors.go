package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("branch is outside the caller's scope")

	// ErrConversionRequired is returned when a plain update tries to move a
	// lead to Converted or Booked.
	ErrConversionRequired = errors.New("status requires conversion with appointment details")
)

// ValidationError is raised before any write when input is incomplete or
// inconsistent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DuplicateRecordError names the record that already owns a phone number.
type DuplicateRecordError struct {
	Entity string
	ID     uuid.UUID
	Phone  string
}

func (e *DuplicateRecordError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("phone %s is already registered", e.Phone)
	}
	return fmt.Sprintf("phone %s is already registered to %s %s", e.Phone, e.Entity, e.ID)
}

// DuplicateOpenLeadError is returned when a contact already has an open lead.
type DuplicateOpenLeadError struct {
	ContactID uuid.UUID
	LeadID    uuid.UUID
}

func (e *DuplicateOpenLeadError) Error() string {
	if e.LeadID == uuid.Nil {
		return fmt.Sprintf("contact %s already has an open lead", e.ContactID)
	}
	return fmt.Sprintf("contact %s already has open lead %s", e.ContactID, e.LeadID)
}

// StaleWriteError means the caller's version is behind the stored one; the
// caller must refetch and retry.
type StaleWriteError struct {
	Entity   string
	ID       uuid.UUID
	Expected int
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("%s %s was modified since version %d", e.Entity, e.ID, e.Expected)
}

// IsConflict reports whether err is one of the conflict errors.
func IsConflict(err error) bool {
	var dup *DuplicateRecordError
	var open *DuplicateOpenLeadError
	var stale *StaleWriteError
	return errors.As(err, &dup) || errors.As(err, &open) || errors.As(err, &stale)
}

type PersistenceKind string

const (
	PersistDuplicateKey PersistenceKind = "duplicate_key"
	PersistForeignKey   PersistenceKind = "foreign_key"
	PersistMissingField PersistenceKind = "missing_field"
	PersistPermission   PersistenceKind = "permission_denied"
	PersistUnavailable  PersistenceKind = "unavailable"
	PersistUnknown      PersistenceKind = "unknown"
)

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op   string
	Kind PersistenceKind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the end user for this failure.
func (e *PersistenceError) UserMessage() string {
	switch e.Kind {
	case PersistDuplicateKey:
		return "A record with the same details already exists"
	case PersistForeignKey:
		return "A related record is missing or still in use"
	case PersistMissingField:
		return "A required field is missing"
	case PersistPermission:
		return "You do not have permission to perform this action"
	case PersistUnavailable:
		return "The database is unavailable, please try again"
	default:
		return "Something went wrong while saving, please try again"
	}
}

// PartialFailureError reports the step of a multi-step operation that
// failed. Completed lists the steps applied before it; they were rolled back
// with the enclosing transaction.
type PartialFailureError struct {
	Op        string
	Step      string
	Completed []string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s failed at %s after [%s], rolled back: %v",
		e.Op, e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// ClassifyDBError maps a gorm/driver error onto the error taxonomy. Errors
// that already belong to it are returned unchanged.
func ClassifyDBError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		valErr   *ValidationError
		dupErr   *DuplicateRecordError
		openErr  *DuplicateOpenLeadError
		stale    *StaleWriteError
		persist  *PersistenceError
		partial  *PartialFailureError
		netError net.Error
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &dupErr), errors.As(err, &openErr),
		errors.As(err, &stale), errors.As(err, &persist), errors.As(err, &partial),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrConversionRequired):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &PersistenceError{Op: op, Kind: PersistDuplicateKey, Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &PersistenceError{Op: op, Kind: PersistForeignKey, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netError):
		return &PersistenceError{Op: op, Kind: PersistUnavailable, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not null"), strings.Contains(msg, "not-null"):
		return &PersistenceError{Op: op, Kind: PersistMissingField, Err: err}
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "row-level security"):
		return &PersistenceError{Op: op, Kind: PersistPermission, Err: err}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"):
		return &PersistenceError{Op: op, Kind: PersistUnavailable, Err: err}
	}
	return &PersistenceError{Op: op, Kind: PersistUnknown, Err: err}
}
