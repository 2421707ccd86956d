package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ContactInput struct {
	BranchID             uuid.UUID  `json:"branchId"`
	FullName             string     `json:"fullName" validate:"required,max=200"`
	PhoneNumber          string     `json:"phoneNumber" validate:"required"`
	SecondaryPhoneNumber string     `json:"secondaryPhoneNumber"`
	Email                string     `json:"email" validate:"omitempty,email"`
	Address              string     `json:"address"`
	Source               string     `json:"source"`
	InstagramURL         string     `json:"instagramUrl" validate:"omitempty,url"`
	Birthday             *time.Time `json:"birthday"`
}

// UpdateContactInput carries only the fields being changed.
type UpdateContactInput struct {
	FullName             *string    `json:"fullName" validate:"omitempty,max=200"`
	PhoneNumber          *string    `json:"phoneNumber"`
	SecondaryPhoneNumber *string    `json:"secondaryPhoneNumber"`
	Email                *string    `json:"email" validate:"omitempty,email"`
	Address              *string    `json:"address"`
	Source               *string    `json:"source"`
	InstagramURL         *string    `json:"instagramUrl" validate:"omitempty,url"`
	Birthday             *time.Time `json:"birthday"`
	Version              int        `json:"version" validate:"required,min=1"`
}

type ContactFilter struct {
	BranchID uuid.UUID
	Search   string
	Limit    int
	Offset   int
}

type ContactService struct {
	db     *gorm.DB
	guard  *DuplicateGuard
	logger *zap.Logger
	Now    func() time.Time
}

func NewContactService(db *gorm.DB, guard *DuplicateGuard, logger *zap.Logger) *ContactService {
	return &ContactService{db: db, guard: guard, logger: logger, Now: time.Now}
}

func (s *ContactService) Create(ctx context.Context, sess SessionContext, input ContactInput) (*models.Contact, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branchID, err := sess.ResolveBranch(input.BranchID)
	if err != nil {
		return nil, err
	}

	var contact *models.Contact
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contact, err = s.createTx(ctx, tx, sess, branchID, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Contact created", zap.String("contact_id", contact.ID.String()), zap.String("user", sess.Actor()))
	return contact, nil
}

// createTx normalizes the phones, runs the duplicate guard and inserts the
// contact with its phone rows inside tx.
func (s *ContactService) createTx(ctx context.Context, tx *gorm.DB, sess SessionContext, branchID uuid.UUID, input ContactInput) (*models.Contact, error) {
	primary, secondary, err := normalizePhones(sess, input.PhoneNumber, input.SecondaryPhoneNumber)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckPhones(ctx, tx, uuid.Nil, primary, secondary); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		BranchID:             branchID,
		FullName:             strings.TrimSpace(input.FullName),
		PhoneNumber:          primary,
		SecondaryPhoneNumber: secondary,
		Email:                strings.TrimSpace(input.Email),
		Address:              input.Address,
		Source:               input.Source,
		InstagramURL:         input.InstagramURL,
		Birthday:             input.Birthday,
		Notes:                []models.Note{},
		Attachments:          []models.Attachment{},
		Comments:             []models.Comment{},
		History:              []models.HistoryEntry{},
	}
	if err := tx.Create(contact).Error; err != nil {
		return nil, ClassifyDBError("create contact", err)
	}
	if err := syncContactPhones(tx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Update(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateContactInput) (*models.Contact, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var updated models.Contact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Contact
		if err := sess.Scope(tx).First(&current, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load contact", err)
		}
		if err := checkVersion("contact", id, current.Version, input.Version); err != nil {
			return err
		}

		updated = current
		applyContactUpdate(&updated, input)

		primary, secondary, err := normalizePhones(sess, updated.PhoneNumber, updated.SecondaryPhoneNumber)
		if err != nil {
			return err
		}
		updated.PhoneNumber, updated.SecondaryPhoneNumber = primary, secondary
		if err := s.guard.CheckPhones(ctx, tx, id, primary, secondary); err != nil {
			return err
		}

		changes := DiffContact(&current, &updated)
		updated.History = PrependHistory(current.History, changes, sess.Actor(), s.Now())
		updated.Version = current.Version + 1
		if err := saveVersioned(tx, "contact", id, current.Version, &updated); err != nil {
			return err
		}
		if primary != current.PhoneNumber || secondary != current.SecondaryPhoneNumber {
			if err := tx.Where("contact_id = ?", id).Delete(&models.ContactPhone{}).Error; err != nil {
				return ClassifyDBError("update contact phones", err)
			}
			return syncContactPhones(tx, &updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func applyContactUpdate(c *models.Contact, in UpdateContactInput) {
	if in.FullName != nil {
		c.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.PhoneNumber != nil {
		c.PhoneNumber = *in.PhoneNumber
	}
	if in.SecondaryPhoneNumber != nil {
		c.SecondaryPhoneNumber = *in.SecondaryPhoneNumber
	}
	if in.Email != nil {
		c.Email = strings.TrimSpace(*in.Email)
	}
	if in.Address != nil {
		c.Address = *in.Address
	}
	if in.Source != nil {
		c.Source = *in.Source
	}
	if in.InstagramURL != nil {
		c.InstagramURL = *in.InstagramURL
	}
	if in.Birthday != nil {
		c.Birthday = in.Birthday
	}
}

func (s *ContactService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := sess.Scope(s.db.WithContext(ctx)).First(&contact, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get contact", err)
	}
	return &contact, nil
}

func (s *ContactService) List(ctx context.Context, sess SessionContext, filter ContactFilter) ([]models.Contact, int64, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Contact{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR phone_number LIKE ? OR secondary_phone_number LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ClassifyDBError("count contacts", err)
	}

	var contacts []models.Contact
	if err := paginate(q, filter.Limit, filter.Offset).Order("created_at DESC").Find(&contacts).Error; err != nil {
		return nil, 0, ClassifyDBError("list contacts", err)
	}
	return contacts, total, nil
}

// Delete soft-deletes the contact and releases its phone numbers.
func (s *ContactService) Delete(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := sess.Scope(tx).First(&contact, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load contact", err)
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.ContactPhone{}).Error; err != nil {
			return ClassifyDBError("delete contact phones", err)
		}
		if err := tx.Delete(&contact).Error; err != nil {
			return ClassifyDBError("delete contact", err)
		}
		return nil
	})
}

func normalizePhones(sess SessionContext, primary, secondary string) (string, string, error) {
	p, err := utils.NormalizePhone(primary, sess.region())
	if err != nil {
		return "", "", validationErr("phoneNumber", "is not a valid phone number")
	}
	if strings.TrimSpace(secondary) == "" {
		return p, "", nil
	}
	sec, err := utils.NormalizePhone(secondary, sess.region())
	if err != nil {
		return "", "", validationErr("secondaryPhoneNumber", "is not a valid phone number")
	}
	return p, sec, nil
}

// syncContactPhones inserts the phone rows for contact. A unique violation
// means another writer claimed the number after the guard ran.
func syncContactPhones(tx *gorm.DB, contact *models.Contact) error {
	rows := []models.ContactPhone{{Phone: contact.PhoneNumber, ContactID: contact.ID, Kind: models.PhoneKindPrimary}}
	if contact.SecondaryPhoneNumber != "" {
		rows = append(rows, models.ContactPhone{Phone: contact.SecondaryPhoneNumber, ContactID: contact.ID, Kind: models.PhoneKindSecondary})
	}
	for _, row := range rows {
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &DuplicateRecordError{Entity: "contact", Phone: row.Phone}
			}
			return ClassifyDBError("create contact phone", err)
		}
	}
	return nil
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}
