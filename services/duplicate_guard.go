package services

import (
	"context"
	"errors"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DuplicateGuard performs the read-only uniqueness checks that gate contact
// and lead writes. Pass the transaction that will perform the write so the
// check and the write see the same snapshot; the unique indexes created by
// config.Migrate catch anything that slips between the two.
type DuplicateGuard struct{}

func NewDuplicateGuard() *DuplicateGuard {
	return &DuplicateGuard{}
}

// CheckPhones fails with a DuplicateRecordError if any of phones already
// belongs to a contact other than exclude. Phones must be normalized.
func (g *DuplicateGuard) CheckPhones(ctx context.Context, tx *gorm.DB, exclude uuid.UUID, phones ...string) error {
	var wanted []string
	seen := map[string]bool{}
	for _, p := range phones {
		if p == "" {
			continue
		}
		if seen[p] {
			return validationErr("secondaryPhoneNumber", "must differ from the primary phone number")
		}
		seen[p] = true
		wanted = append(wanted, p)
	}
	if len(wanted) == 0 {
		return nil
	}

	var owners []models.ContactPhone
	if err := tx.WithContext(ctx).Where("phone IN ?", wanted).Find(&owners).Error; err != nil {
		return ClassifyDBError("check phones", err)
	}
	for _, o := range owners {
		if o.ContactID != exclude {
			return &DuplicateRecordError{Entity: "contact", ID: o.ContactID, Phone: o.Phone}
		}
	}
	return nil
}

// CheckOpenLead fails with a DuplicateOpenLeadError if contactID already has
// an open lead other than exclude.
func (g *DuplicateGuard) CheckOpenLead(ctx context.Context, tx *gorm.DB, contactID, exclude uuid.UUID) error {
	q := tx.WithContext(ctx).
		Where("contact_id = ? AND status NOT IN ?", contactID, closedLeadStatuses())
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}

	var open models.Lead
	err := q.First(&open).Error
	switch {
	case err == nil:
		return &DuplicateOpenLeadError{ContactID: contactID, LeadID: open.ID}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return ClassifyDBError("check open lead", err)
	}
}

func closedLeadStatuses() []string {
	out := make([]string, len(models.ClosedLeadStatuses))
	for i, s := range models.ClosedLeadStatuses {
		out[i] = string(s)
	}
	return out
}
