package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const UnassignedAgent = "Unassigned"

// CreateLeadInput creates a lead for an existing contact (ContactID) or, in
// intake mode, for a new contact described by Contact.
type CreateLeadInput struct {
	BranchID          uuid.UUID     `json:"branchId"`
	ContactID         uuid.UUID     `json:"contactId"`
	Contact           *ContactInput `json:"contact"`
	LeadSource        string        `json:"leadSource" validate:"required"`
	ServiceOfInterest string        `json:"serviceOfInterest"`
	Status            string        `json:"status"`
	AssignedAgent     string        `json:"assignedAgent"`
	Date              *time.Time    `json:"date"`
	Note              string        `json:"note"`
}

// UpdateLeadInput is the full edit form of a lead. Status, assigned agent
// and date are always required.
type UpdateLeadInput struct {
	Status            string     `json:"status" validate:"required"`
	AssignedAgent     string     `json:"assignedAgent" validate:"required"`
	Date              *time.Time `json:"date" validate:"required"`
	LeadSource        *string    `json:"leadSource"`
	ServiceOfInterest *string    `json:"serviceOfInterest"`
	Note              *string    `json:"note"`
	Version           int        `json:"version" validate:"required,min=1"`
}

type LeadFilter struct {
	BranchID      uuid.UUID
	Status        string
	OpenOnly      bool
	AssignedAgent string
	Search        string
	Limit         int
	Offset        int
}

type LeadService struct {
	db       *gorm.DB
	guard    *DuplicateGuard
	contacts *ContactService
	catalog  *StatusCatalog
	metrics  *metrics.Metrics
	logger   *zap.Logger
	Now      func() time.Time
}

func NewLeadService(db *gorm.DB, guard *DuplicateGuard, contacts *ContactService, catalog *StatusCatalog, m *metrics.Metrics, logger *zap.Logger) *LeadService {
	return &LeadService{
		db:       db,
		guard:    guard,
		contacts: contacts,
		catalog:  catalog,
		metrics:  m,
		logger:   logger,
		Now:      time.Now,
	}
}

func (s *LeadService) Create(ctx context.Context, sess SessionContext, input CreateLeadInput) (*models.Lead, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if (input.ContactID == uuid.Nil) == (input.Contact == nil) {
		return nil, validationErr("contactId", "exactly one of contactId or contact is required")
	}
	if input.Contact != nil {
		if err := validateInput(*input.Contact); err != nil {
			return nil, err
		}
	}

	status := models.LeadFresh
	if input.Status != "" {
		status = models.LeadStatus(input.Status)
	}
	if status.RequiresConversion() {
		return nil, ErrConversionRequired
	}

	var lead *models.Lead
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact *models.Contact
		if input.ContactID != uuid.Nil {
			contact = &models.Contact{}
			if err := sess.Scope(tx).First(contact, "id = ?", input.ContactID).Error; err != nil {
				return ClassifyDBError("load contact", err)
			}
		} else {
			requested := input.BranchID
			if requested == uuid.Nil {
				requested = input.Contact.BranchID
			}
			branchID, err := sess.ResolveBranch(requested)
			if err != nil {
				return err
			}
			contact, err = s.contacts.createTx(ctx, tx, sess, branchID, *input.Contact)
			if err != nil {
				return err
			}
		}

		if err := s.checkStatus(ctx, tx, contact.BranchID, status); err != nil {
			return err
		}
		if status.IsOpen() {
			if err := s.guard.CheckOpenLead(ctx, tx, contact.ID, uuid.Nil); err != nil {
				return err
			}
		}

		date := s.Now()
		if input.Date != nil {
			date = *input.Date
		}
		agent := strings.TrimSpace(input.AssignedAgent)
		if agent == "" {
			agent = UnassignedAgent
		}

		lead = &models.Lead{
			BranchID:           contact.BranchID,
			ContactID:          contact.ID,
			ContactFullName:    contact.FullName,
			ContactPhoneNumber: contact.PhoneNumber,
			LeadSource:         input.LeadSource,
			ServiceOfInterest:  input.ServiceOfInterest,
			Status:             status,
			AssignedAgent:      agent,
			Date:               date,
			Note:               input.Note,
			NotesData:          []models.Note{},
			Attachments:        []models.Attachment{},
			Comments:           []models.Comment{},
			StatusHistory:      []models.HistoryEntry{},
		}
		if err := tx.Create(lead).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &DuplicateOpenLeadError{ContactID: contact.ID}
			}
			return ClassifyDBError("create lead", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("contact_id", lead.ContactID.String()),
		zap.String("status", string(lead.Status)),
	)
	return lead, nil
}

// Update applies a plain field edit. Moving to Converted or Booked must go
// through ConversionService.Convert instead.
func (s *LeadService) Update(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateLeadInput) (*models.Lead, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.AssignedAgent) == "" {
		return nil, validationErr("assignedAgent", "is required")
	}
	next := models.LeadStatus(strings.TrimSpace(input.Status))

	var updated models.Lead
	var from models.LeadStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Lead
		if err := sess.Scope(tx).First(&current, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load lead", err)
		}
		if err := checkVersion("lead", id, current.Version, input.Version); err != nil {
			return err
		}
		from = current.Status

		if next != current.Status {
			if next.RequiresConversion() {
				return ErrConversionRequired
			}
			if current.Status == models.LeadConverted {
				return validationErr("status", "a converted lead cannot change status")
			}
			if err := s.checkStatus(ctx, tx, current.BranchID, next); err != nil {
				return err
			}
			if !current.Status.IsOpen() && next.IsOpen() {
				if err := s.guard.CheckOpenLead(ctx, tx, current.ContactID, current.ID); err != nil {
					return err
				}
			}
		}

		updated = current
		updated.Status = next
		updated.AssignedAgent = strings.TrimSpace(input.AssignedAgent)
		updated.Date = *input.Date
		if input.LeadSource != nil {
			updated.LeadSource = *input.LeadSource
		}
		if input.ServiceOfInterest != nil {
			updated.ServiceOfInterest = *input.ServiceOfInterest
		}
		if input.Note != nil {
			updated.Note = *input.Note
		}

		changes := DiffLead(&current, &updated)
		updated.StatusHistory = PrependHistory(current.StatusHistory, changes, sess.Actor(), s.Now())
		updated.Version = current.Version + 1
		err := saveVersioned(tx, "lead", id, current.Version, &updated)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &DuplicateOpenLeadError{ContactID: current.ContactID}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if from != updated.Status {
		s.metrics.LeadTransitions.WithLabelValues(string(from), string(updated.Status)).Inc()
		s.logger.Info("Lead status changed",
			zap.String("lead_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)),
			zap.String("user", sess.Actor()),
		)
	}
	return &updated, nil
}

func (s *LeadService) checkStatus(ctx context.Context, tx *gorm.DB, branchID uuid.UUID, status models.LeadStatus) error {
	ok, err := s.catalog.WithDB(tx).IsValid(ctx, branchID, status)
	if err != nil {
		return err
	}
	if !ok {
		return validationErr("status", "%q is not a lead status of this branch", status)
	}
	return nil
}

func (s *LeadService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := sess.Scope(s.db.WithContext(ctx)).First(&lead, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get lead", err)
	}
	return &lead, nil
}

func (s *LeadService) List(ctx context.Context, sess SessionContext, filter LeadFilter) ([]models.Lead, int64, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Lead{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OpenOnly {
		q = q.Where("status NOT IN ?", closedLeadStatuses())
	}
	if filter.AssignedAgent != "" {
		q = q.Where("assigned_agent = ?", filter.AssignedAgent)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(contact_full_name) LIKE ? OR contact_phone_number LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ClassifyDBError("count leads", err)
	}
	var leads []models.Lead
	if err := paginate(q, filter.Limit, filter.Offset).Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, 0, ClassifyDBError("list leads", err)
	}
	return leads, total, nil
}

// History returns the lead's status history, most recent first.
func (s *LeadService) History(ctx context.Context, sess SessionContext, id uuid.UUID) ([]models.HistoryEntry, error) {
	lead, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if lead.StatusHistory == nil {
		return []models.HistoryEntry{}, nil
	}
	return lead.StatusHistory, nil
}

func (s *LeadService) Delete(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	res := sess.Scope(s.db.WithContext(ctx)).Where("id = ?", id).Delete(&models.Lead{})
	if res.Error != nil {
		return ClassifyDBError("delete lead", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Statuses lists the statuses a lead in branchID may take.
func (s *LeadService) Statuses(ctx context.Context, sess SessionContext, branchID uuid.UUID) ([]string, error) {
	if !sess.CanAccess(branchID) {
		return nil, ErrNotFound
	}
	return s.catalog.LeadStatuses(ctx, branchID)
}
