package services

import (
	"context"
	"strings"
	"time"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TicketInput struct {
	BranchID     uuid.UUID `json:"branchId"`
	CustomerName string    `json:"customerName" validate:"required"`
	Subject      string    `json:"subject" validate:"required,max=300"`
	Description  string    `json:"description"`
	Status       string    `json:"status" validate:"omitempty,oneof=Open 'In Progress' Resolved Closed"`
	Priority     string    `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	AssignedTo   string    `json:"assignedTo"`
	Department   string    `json:"department"`
}

type UpdateTicketInput struct {
	CustomerName *string `json:"customerName"`
	Subject      *string `json:"subject" validate:"omitempty,max=300"`
	Description  *string `json:"description"`
	Status       *string `json:"status" validate:"omitempty,oneof=Open 'In Progress' Resolved Closed"`
	Priority     *string `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	AssignedTo   *string `json:"assignedTo"`
	Department   *string `json:"department"`
	Version      int     `json:"version" validate:"required,min=1"`
}

type TicketFilter struct {
	BranchID   uuid.UUID
	Status     string
	Priority   string
	AssignedTo string
	Limit      int
	Offset     int
}

type TicketService struct {
	db     *gorm.DB
	logger *zap.Logger
	Now    func() time.Time
}

func NewTicketService(db *gorm.DB, logger *zap.Logger) *TicketService {
	return &TicketService{db: db, logger: logger, Now: time.Now}
}

func (s *TicketService) Create(ctx context.Context, sess SessionContext, input TicketInput) (*models.Ticket, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branchID, err := sess.ResolveBranch(input.BranchID)
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		BranchID:     branchID,
		CustomerName: strings.TrimSpace(input.CustomerName),
		Subject:      strings.TrimSpace(input.Subject),
		Description:  input.Description,
		Status:       defaultString(input.Status, models.TicketOpen),
		Priority:     defaultString(input.Priority, models.PriorityMedium),
		AssignedTo:   input.AssignedTo,
		Department:   input.Department,
		Notes:        []models.Note{},
		Attachments:  []models.Attachment{},
		Comments:     []models.Comment{},
		History:      []models.HistoryEntry{},
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, ClassifyDBError("create ticket", err)
	}
	s.logger.Info("Ticket created", zap.String("ticket_id", ticket.ID.String()), zap.String("priority", ticket.Priority))
	return ticket, nil
}

func (s *TicketService) Update(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateTicketInput) (*models.Ticket, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var updated models.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Ticket
		if err := sess.Scope(tx).First(&current, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load ticket", err)
		}
		if err := checkVersion("ticket", id, current.Version, input.Version); err != nil {
			return err
		}

		updated = current
		setIf(&updated.CustomerName, input.CustomerName)
		setIf(&updated.Subject, input.Subject)
		setIf(&updated.Description, input.Description)
		setIf(&updated.Status, input.Status)
		setIf(&updated.Priority, input.Priority)
		setIf(&updated.AssignedTo, input.AssignedTo)
		setIf(&updated.Department, input.Department)
		if strings.TrimSpace(updated.Subject) == "" {
			return validationErr("subject", "is required")
		}

		updated.History = PrependHistory(current.History, DiffTicket(&current, &updated), sess.Actor(), s.Now())
		updated.Version = current.Version + 1
		return saveVersioned(tx, "ticket", id, current.Version, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *TicketService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := sess.Scope(s.db.WithContext(ctx)).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get ticket", err)
	}
	return &ticket, nil
}

func (s *TicketService) List(ctx context.Context, sess SessionContext, filter TicketFilter) ([]models.Ticket, int64, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Ticket{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ClassifyDBError("count tickets", err)
	}
	var tickets []models.Ticket
	if err := paginate(q, filter.Limit, filter.Offset).Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, 0, ClassifyDBError("list tickets", err)
	}
	return tickets, total, nil
}

func (s *TicketService) Delete(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	res := sess.Scope(s.db.WithContext(ctx)).Where("id = ?", id).Delete(&models.Ticket{})
	if res.Error != nil {
		return ClassifyDBError("delete ticket", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
