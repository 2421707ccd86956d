package services

import (
	"context"
	"io"
	"strings"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxAttachmentSize = 20 << 20

type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	Version     int
}

// AttachmentService stores files in object storage and records them on the
// owning record.
type AttachmentService struct {
	records *RecordService
	store   storage.Store
	logger  *zap.Logger
	Now     func() time.Time
}

func NewAttachmentService(records *RecordService, store storage.Store, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{records: records, store: store, logger: logger, Now: time.Now}
}

// Upload stores the file, then appends it to the record. The stored object
// is removed again if the record could not be updated.
func (s *AttachmentService) Upload(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID, input UploadInput) (*models.Attachment, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationErr("file", "is required")
	}
	if input.Size > MaxAttachmentSize {
		return nil, validationErr("file", "must be at most %d MB", MaxAttachmentSize>>20)
	}
	if _, err := s.records.Load(ctx, sess, kind, id); err != nil {
		return nil, err
	}

	fileID := uuid.NewString()
	key := storage.AttachmentKey(string(kind), id.String(), fileID, name)
	url, err := s.store.Upload(ctx, key, input.ContentType, input.Body, input.Size)
	if err != nil {
		return nil, &PersistenceError{Op: "upload attachment", Kind: PersistUnavailable, Err: err}
	}

	attachment := models.Attachment{
		ID:          fileID,
		Name:        name,
		URL:         url,
		ContentType: input.ContentType,
		Size:        input.Size,
		UploadedBy:  sess.Actor(),
		UploadedAt:  s.Now(),
	}
	_, err = s.records.mutate(ctx, sess, kind, id, input.Version, func(rec models.Annotated) error {
		list := rec.AttachmentList()
		*list = append(*list, attachment)
		return nil
	})
	if err != nil {
		if derr := s.store.Delete(ctx, url); derr != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("url", url), zap.Error(derr))
		}
		return nil, err
	}
	return &attachment, nil
}

// Delete removes the attachment from the record, then from storage unless
// another record still lists it. Conversion and no-show reconciliation copy
// attachments between leads and customers, so the object is shared. A
// storage failure is logged only; the record no longer references the file.
func (s *AttachmentService) Delete(ctx context.Context, sess SessionContext, kind RecordKind, id uuid.UUID, attachmentID string, version int) error {
	var removed *models.Attachment
	_, err := s.records.mutate(ctx, sess, kind, id, version, func(rec models.Annotated) error {
		list := rec.AttachmentList()
		kept := make([]models.Attachment, 0, len(*list))
		for _, a := range *list {
			if a.ID == attachmentID {
				a := a
				removed = &a
				continue
			}
			kept = append(kept, a)
		}
		if removed == nil {
			return ErrNotFound
		}
		*list = kept
		return nil
	})
	if err != nil {
		return err
	}

	shared, err := s.referenced(ctx, removed.ID)
	if err != nil {
		s.logger.Warn("Keeping attachment, reference check failed", zap.String("url", removed.URL), zap.Error(err))
		return nil
	}
	if shared {
		s.logger.Debug("Attachment still referenced, keeping object", zap.String("url", removed.URL))
		return nil
	}
	if err := s.store.Delete(ctx, removed.URL); err != nil {
		s.logger.Warn("Failed to delete attachment from storage", zap.String("url", removed.URL), zap.Error(err))
	}
	return nil
}

// referenced reports whether any record still lists the attachment.
// Converted leads and archived customers are soft-deleted but keep their
// history, so deleted rows count too.
func (s *AttachmentService) referenced(ctx context.Context, attachmentID string) (bool, error) {
	pattern := "%" + attachmentID + "%"
	for _, model := range []any{&models.Lead{}, &models.Customer{}, &models.Contact{}, &models.Ticket{}} {
		var n int64
		err := s.records.db.WithContext(ctx).Unscoped().Model(model).
			Where("CAST(attachments AS TEXT) LIKE ?", pattern).
			Count(&n).Error
		if err != nil {
			return false, ClassifyDBError("check attachment references", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
