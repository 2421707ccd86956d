package services

import (
	"context"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UpdateAppointmentStatusInput struct {
	Status  string `json:"status" validate:"required"`
	Version int    `json:"version" validate:"required,min=1"`
}

type RescheduleInput struct {
	AppointmentDate time.Time `json:"appointmentDate" validate:"required"`
	Notes           *string   `json:"notes"`
	Version         int       `json:"version" validate:"required,min=1"`
}

type AppointmentFilter struct {
	BranchID   uuid.UUID
	CustomerID uuid.UUID
	Status     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AppointmentStatusResult reports what an appointment status change did to
// the parent customer.
type AppointmentStatusResult struct {
	Appointment    *models.Appointment `json:"appointment"`
	CustomerStatus string              `json:"customerStatus"`
	Reconciled     *ReconcileResult    `json:"reconciled,omitempty"`
}

type AppointmentService struct {
	db         *gorm.DB
	reconciler *NoShowReconciler
	notifier   *BookingNotifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	Now        func() time.Time
}

func NewAppointmentService(db *gorm.DB, reconciler *NoShowReconciler, notifier *BookingNotifier, m *metrics.Metrics, logger *zap.Logger) *AppointmentService {
	return &AppointmentService{
		db:         db,
		reconciler: reconciler,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		Now:        time.Now,
	}
}

// Create books a follow-up appointment for an existing customer.
func (s *AppointmentService) Create(ctx context.Context, sess SessionContext, customerID uuid.UUID, details AppointmentDetails) (*models.Appointment, error) {
	if err := validateInput(details); err != nil {
		return nil, err
	}

	var appointment models.Appointment
	var email string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := sess.Scope(tx).First(&customer, "id = ?", customerID).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}
		email = customer.ContactEmail

		appointment = models.Appointment{
			BranchID:           customer.BranchID,
			CustomerID:         customer.ID,
			ContactFullName:    customer.ContactFullName,
			ContactPhoneNumber: customer.ContactPhoneNumber,
			Department:         details.Department,
			AppointmentDate:    details.VisitDate,
			Status:             models.AppointmentScheduled,
			Notes:              details.Notes,
		}
		if err := tx.Create(&appointment).Error; err != nil {
			return ClassifyDBError("create appointment", err)
		}

		updated := customer
		updated.Department = details.Department
		updated.AppointmentDate = details.VisitDate
		if status, ok := models.CustomerStatusFor(appointment.Status); ok {
			updated.Status = status
		}
		return s.saveCustomer(tx, sess, &customer, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Booked(ctx, &appointment, email)
	return &appointment, nil
}

// UpdateStatus changes an appointment's status and propagates it to the
// customer through the fixed mapping. A customer that becomes No-Show is
// reconciled in the same transaction.
func (s *AppointmentService) UpdateStatus(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateAppointmentStatusInput) (*AppointmentStatusResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	next := models.AppointmentStatus(input.Status)
	if !next.Valid() {
		return nil, validationErr("status", "%q is not an appointment status", input.Status)
	}

	var (
		appointment models.Appointment
		customer    models.Customer
		lead        *models.Lead
		reconciling bool
		completed   bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sess.Scope(tx).First(&appointment, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load appointment", err)
		}
		if err := checkVersion("appointment", id, appointment.Version, input.Version); err != nil {
			return err
		}
		if err := tx.First(&customer, "id = ?", appointment.CustomerID).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}

		stored := appointment.Version
		completed = next == models.AppointmentCompleted && appointment.Status != next
		if appointment.Status != next {
			appointment.Status = next
			appointment.Version = stored + 1
			if err := saveVersioned(tx, "appointment", id, stored, &appointment); err != nil {
				return err
			}
		}

		latest, err := latestAppointmentID(tx, customer.ID)
		if err != nil {
			return err
		}
		if latest != appointment.ID {
			return nil
		}
		target, ok := models.CustomerStatusFor(next)
		if !ok || target == customer.Status {
			return nil
		}
		if target == models.CustomerNoShow {
			reconciling = true
			var err error
			lead, err = s.reconciler.reconcileTx(tx, sess, &customer)
			return err
		}
		updated := customer
		updated.Status = target
		if err := s.saveCustomer(tx, sess, &customer, &updated); err != nil {
			return err
		}
		customer = updated
		return nil
	})

	result := &AppointmentStatusResult{Appointment: &appointment}
	if reconciling {
		rec, rerr := s.reconciler.finish(sess, customer.ID, lead, err)
		if rerr != nil {
			return nil, rerr
		}
		result.Reconciled = rec
		result.CustomerStatus = string(models.CustomerNoShow)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.CustomerStatus = string(customer.Status)
	if completed {
		s.notifier.Completed(ctx, &appointment, customer.ContactEmail)
	}
	return result, nil
}

// Reschedule moves an appointment to a new date. The customer's status is
// left alone; its appointment date follows the appointment.
func (s *AppointmentService) Reschedule(ctx context.Context, sess SessionContext, id uuid.UUID, input RescheduleInput) (*models.Appointment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var appointment models.Appointment
	var email string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sess.Scope(tx).First(&appointment, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load appointment", err)
		}
		if err := checkVersion("appointment", id, appointment.Version, input.Version); err != nil {
			return err
		}
		if !appointment.Status.IsOpen() {
			return validationErr("status", "a %s appointment cannot be rescheduled", appointment.Status)
		}

		stored := appointment.Version
		appointment.AppointmentDate = input.AppointmentDate
		appointment.Status = models.AppointmentRescheduled
		if input.Notes != nil {
			appointment.Notes = *input.Notes
		}
		appointment.Version = stored + 1
		if err := saveVersioned(tx, "appointment", id, stored, &appointment); err != nil {
			return err
		}

		var customer models.Customer
		if err := tx.First(&customer, "id = ?", appointment.CustomerID).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}
		email = customer.ContactEmail
		updated := customer
		updated.AppointmentDate = input.AppointmentDate
		return s.saveCustomer(tx, sess, &customer, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Booked(ctx, &appointment, email)
	return &appointment, nil
}

// latestAppointmentID returns the customer's most recent booking. Only its
// status is mirrored on the customer; older visits keep their own status.
func latestAppointmentID(tx *gorm.DB, customerID uuid.UUID) (uuid.UUID, error) {
	var latest models.Appointment
	err := tx.Select("id").
		Where("customer_id = ?", customerID).
		Order("appointment_date DESC, created_at DESC").
		Take(&latest).Error
	if err != nil {
		return uuid.Nil, ClassifyDBError("load latest appointment", err)
	}
	return latest.ID, nil
}

func (s *AppointmentService) saveCustomer(tx *gorm.DB, sess SessionContext, current, updated *models.Customer) error {
	updated.StatusHistory = PrependHistory(current.StatusHistory, DiffCustomer(current, updated), sess.Actor(), s.Now())
	updated.Version = current.Version + 1
	return saveVersioned(tx, "customer", current.ID, current.Version, updated)
}

func (s *AppointmentService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := sess.Scope(s.db.WithContext(ctx)).First(&appointment, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get appointment", err)
	}
	return &appointment, nil
}

func (s *AppointmentService) List(ctx context.Context, sess SessionContext, filter AppointmentFilter) ([]models.Appointment, int64, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Appointment{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.CustomerID != uuid.Nil {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("appointment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("appointment_date < ?", *filter.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ClassifyDBError("count appointments", err)
	}
	var appointments []models.Appointment
	if err := paginate(q, filter.Limit, filter.Offset).Order("appointment_date ASC").Find(&appointments).Error; err != nil {
		return nil, 0, ClassifyDBError("list appointments", err)
	}
	return appointments, total, nil
}
