package services

import (
	"context"
	"strings"
	"time"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordKind names a record type that carries notes, attachments and
// comments. The value matches the URL segment used by the API.
type RecordKind string

const (
	RecordContact  RecordKind = "contacts"
	RecordLead     RecordKind = "leads"
	RecordCustomer RecordKind = "customers"
	RecordTicket   RecordKind = "tickets"
)

func ParseRecordKind(s string) (RecordKind, error) {
	switch k := RecordKind(s); k {
	case RecordContact, RecordLead, RecordCustomer, RecordTicket:
		return k, nil
	}
	return "", validationErr("recordType", "unknown record type %q", s)
}

func (k RecordKind) newRecord() models.Annotated {
	switch k {
	case RecordContact:
		return &models.Contact{}
	case RecordLead:
		return &models.Lead{}
	case RecordCustomer:
		return &models.Customer{}
	default:
		return &models.Ticket{}
	}
}

func (k RecordKind) entity() string {
	return strings.TrimSuffix(string(k), "s")
}

// RecordService appends notes and comments to any annotated record.
type RecordService struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewRecordService(db *gorm.DB) *RecordService {
	return &RecordService{db: db, Now: time.Now}
}

func (s *RecordService) AddNote(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID, text string, version int) (models.Annotated, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("text", "is required")
	}
	return s.mutate(ctx, sess, kind, id, version, func(rec models.Annotated) error {
		notes := rec.NoteList()
		*notes = append([]models.Note{{
			ID:   uuid.NewString(),
			Text: text,
			User: sess.Actor(),
			Date: s.Now(),
		}}, *notes...)
		return nil
	})
}

func (s *RecordService) AddComment(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID, text string, version int) (models.Annotated, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("text", "is required")
	}
	return s.mutate(ctx, sess, kind, id, version, func(rec models.Annotated) error {
		comments := rec.CommentList()
		*comments = append(*comments, models.Comment{
			ID:   uuid.NewString(),
			Text: text,
			User: sess.Actor(),
			Date: s.Now(),
		})
		return nil
	})
}

// Load fetches a record of kind within the caller's scope.
func (s *RecordService) Load(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID) (models.Annotated, error) {
	rec := kind.newRecord()
	if err := sess.Scope(s.db.WithContext(ctx)).First(rec, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("load "+kind.entity(), err)
	}
	return rec, nil
}

// mutate loads the record inside a transaction, applies fn and writes it
// back with a bumped version. A zero version skips the caller-side check;
// the write is still guarded by the version that was loaded.
func (s *RecordService) mutate(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID, version int, fn func(models.Annotated) error) (models.Annotated, error) {
	rec := kind.newRecord()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sess.Scope(tx).First(rec, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load "+kind.entity(), err)
		}
		stored := rec.CurrentVersion()
		if err := checkVersion(kind.entity(), id, stored, version); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.SetVersion(stored + 1)
		return saveVersioned(tx, kind.entity(), id, stored, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
