package services

import (
	"context"
	"errors"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ConversionResult struct {
	CustomerID    uuid.UUID `json:"customerId"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
}

// ConversionService turns a lead into a booked customer.
type ConversionService struct {
	db       *gorm.DB
	notifier *BookingNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	Now      func() time.Time
}

func NewConversionService(db *gorm.DB, notifier *BookingNotifier, m *metrics.Metrics, logger *zap.Logger) *ConversionService {
	return &ConversionService{db: db, notifier: notifier, metrics: m, logger: logger, Now: time.Now}
}

// Convert creates the customer and its first appointment and marks the lead
// Converted, all in one transaction. Side effects run after commit.
func (s *ConversionService) Convert(ctx context.Context, sess SessionContext, leadID uuid.UUID, details AppointmentDetails, expectedVersion int) (*ConversionResult, error) {
	if err := validateInput(details); err != nil {
		return nil, err
	}

	var (
		customer    models.Customer
		appointment models.Appointment
		from        models.LeadStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := sess.Scope(tx).First(&lead, "id = ?", leadID).Error; err != nil {
			return ClassifyDBError("load lead", err)
		}
		if err := checkVersion("lead", leadID, lead.Version, expectedVersion); err != nil {
			return err
		}
		if lead.Status == models.LeadConverted {
			return validationErr("status", "lead is already converted")
		}
		from = lead.Status

		var email string
		var contact models.Contact
		if err := tx.Select("id", "email").First(&contact, "id = ?", lead.ContactID).Error; err == nil {
			email = contact.Email
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ClassifyDBError("load contact", err)
		}

		now := s.Now()
		var done []string
		step := func(name string, err error) error {
			if err != nil {
				return &PartialFailureError{Op: "convert lead", Step: name, Completed: done, Err: ClassifyDBError(name, err)}
			}
			done = append(done, name)
			return nil
		}

		customer = models.Customer{
			BranchID:           lead.BranchID,
			ContactID:          lead.ContactID,
			ContactFullName:    lead.ContactFullName,
			ContactPhoneNumber: lead.ContactPhoneNumber,
			ContactEmail:       email,
			LeadSource:         lead.LeadSource,
			Department:         details.Department,
			Status:             models.CustomerBooked,
			AppointmentDate:    details.VisitDate,
			Notes:              cloneSlice(lead.NotesData),
			Attachments:        cloneSlice(lead.Attachments),
			Comments:           cloneSlice(lead.Comments),
			StatusHistory:      []models.HistoryEntry{},
			LeadID:             &lead.ID,
		}
		if err := step("create customer", tx.Create(&customer).Error); err != nil {
			return err
		}

		appointment = models.Appointment{
			BranchID:           lead.BranchID,
			CustomerID:         customer.ID,
			ContactFullName:    lead.ContactFullName,
			ContactPhoneNumber: lead.ContactPhoneNumber,
			Department:         details.Department,
			AppointmentDate:    details.VisitDate,
			Status:             models.AppointmentScheduled,
			Notes:              details.Notes,
		}
		if err := step("create appointment", tx.Create(&appointment).Error); err != nil {
			return err
		}

		updated := lead
		updated.Status = models.LeadConverted
		updated.ConvertedCustomerID = &customer.ID
		updated.StatusHistory = PrependHistory(lead.StatusHistory, DiffLead(&lead, &updated), sess.Actor(), now)
		updated.Version = lead.Version + 1
		if err := saveVersioned(tx, "lead", lead.ID, lead.Version, &updated); err != nil {
			var stale *StaleWriteError
			if errors.As(err, &stale) {
				return err
			}
			return step("mark lead converted", err)
		}
		done = append(done, "mark lead converted")
		return nil
	})
	if err != nil {
		s.metrics.Conversions.WithLabelValues("failed").Inc()
		s.logger.Warn("Lead conversion failed", zap.String("lead_id", leadID.String()), zap.Error(err))
		return nil, err
	}

	s.metrics.Conversions.WithLabelValues("success").Inc()
	s.metrics.LeadTransitions.WithLabelValues(string(from), string(models.LeadConverted)).Inc()
	s.logger.Info("Lead converted",
		zap.String("lead_id", leadID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("appointment_id", appointment.ID.String()),
		zap.String("user", sess.Actor()),
	)

	s.notifier.Booked(ctx, &appointment, customer.ContactEmail)

	return &ConversionResult{
		CustomerID:    customer.ID,
		AppointmentID: appointment.ID,
		LeadID:        leadID,
	}, nil
}

// cloneSlice copies src so the new record never shares a backing array with
// the old one. A nil slice becomes empty.
func cloneSlice[T any](src []T) []T {
	out := make([]T, len(src))
	copy(out, src)
	return out
}
