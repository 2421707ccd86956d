package services

import (
	"context"
	"strings"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookInput books a contact directly, without going through a lead.
type BookInput struct {
	ContactID  uuid.UUID `json:"contactId"`
	LeadSource string    `json:"leadSource"`
	AppointmentDetails
}

type UpdateCustomerInput struct {
	Status          *string    `json:"status" validate:"omitempty,oneof=Booked Rescheduled Showed No-Show"`
	Department      *string    `json:"department"`
	AppointmentDate *time.Time `json:"appointmentDate"`
	LeadSource      *string    `json:"leadSource"`
	Version         int        `json:"version" validate:"required,min=1"`
}

// CustomerUpdate is the outcome of an update. When the update set the
// customer to No-Show, Customer is the archived record and Reconciled holds
// the new lead.
type CustomerUpdate struct {
	Customer   *models.Customer `json:"customer"`
	Reconciled *ReconcileResult `json:"reconciled,omitempty"`
}

type CustomerFilter struct {
	BranchID   uuid.UUID
	Status     string
	Department string
	Search     string
	Limit      int
	Offset     int
}

type CustomerService struct {
	db         *gorm.DB
	reconciler *NoShowReconciler
	notifier   *BookingNotifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	Now        func() time.Time
}

func NewCustomerService(db *gorm.DB, reconciler *NoShowReconciler, notifier *BookingNotifier, m *metrics.Metrics, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		db:         db,
		reconciler: reconciler,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		Now:        time.Now,
	}
}

// Book creates a customer and its appointment for an existing contact.
func (s *CustomerService) Book(ctx context.Context, sess SessionContext, input BookInput) (*models.Customer, error) {
	if input.ContactID == uuid.Nil {
		return nil, validationErr("contactId", "is required")
	}
	if err := validateInput(input.AppointmentDetails); err != nil {
		return nil, err
	}

	var customer models.Customer
	var appointment models.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := sess.Scope(tx).First(&contact, "id = ?", input.ContactID).Error; err != nil {
			return ClassifyDBError("load contact", err)
		}

		source := input.LeadSource
		if source == "" {
			source = contact.Source
		}
		customer = models.Customer{
			BranchID:           contact.BranchID,
			ContactID:          contact.ID,
			ContactFullName:    contact.FullName,
			ContactPhoneNumber: contact.PhoneNumber,
			ContactEmail:       contact.Email,
			LeadSource:         source,
			Department:         input.Department,
			Status:             models.CustomerBooked,
			AppointmentDate:    input.VisitDate,
			Notes:              []models.Note{},
			Attachments:        []models.Attachment{},
			Comments:           []models.Comment{},
			StatusHistory:      []models.HistoryEntry{},
		}
		if err := tx.Create(&customer).Error; err != nil {
			return ClassifyDBError("create customer", err)
		}

		appointment = models.Appointment{
			BranchID:           contact.BranchID,
			CustomerID:         customer.ID,
			ContactFullName:    contact.FullName,
			ContactPhoneNumber: contact.PhoneNumber,
			Department:         input.Department,
			AppointmentDate:    input.VisitDate,
			Status:             models.AppointmentScheduled,
			Notes:              input.Notes,
		}
		if err := tx.Create(&appointment).Error; err != nil {
			return ClassifyDBError("create appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Customer booked",
		zap.String("customer_id", customer.ID.String()),
		zap.String("appointment_id", appointment.ID.String()),
	)
	s.notifier.Booked(ctx, &appointment, customer.ContactEmail)

	customer.Appointments = []models.Appointment{appointment}
	return &customer, nil
}

// Update edits a customer. Setting the status to No-Show runs the no-show
// reconciliation in the same transaction.
func (s *CustomerService) Update(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateCustomerInput) (*CustomerUpdate, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var (
		updated     models.Customer
		lead        *models.Lead
		reconciling bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Customer
		if err := sess.Scope(tx).First(&current, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}
		if err := checkVersion("customer", id, current.Version, input.Version); err != nil {
			return err
		}

		updated = current
		if input.Department != nil {
			updated.Department = strings.TrimSpace(*input.Department)
		}
		if input.AppointmentDate != nil {
			updated.AppointmentDate = *input.AppointmentDate
		}
		if input.LeadSource != nil {
			updated.LeadSource = *input.LeadSource
		}

		noShow := input.Status != nil &&
			models.CustomerStatus(*input.Status) == models.CustomerNoShow &&
			current.Status != models.CustomerNoShow
		if noShow {
			reconciling = true
			var err error
			lead, err = s.reconciler.reconcileTx(tx, sess, &updated)
			return err
		}

		if input.Status != nil {
			updated.Status = models.CustomerStatus(*input.Status)
		}
		updated.StatusHistory = PrependHistory(current.StatusHistory, DiffCustomer(&current, &updated), sess.Actor(), s.Now())
		updated.Version = current.Version + 1
		return saveVersioned(tx, "customer", id, current.Version, &updated)
	})

	if reconciling {
		result, rerr := s.reconciler.finish(sess, id, lead, err)
		if rerr != nil {
			return nil, rerr
		}
		return &CustomerUpdate{Customer: &updated, Reconciled: result}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CustomerUpdate{Customer: &updated}, nil
}

func (s *CustomerService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := sess.Scope(s.db.WithContext(ctx)).
		Preload("Appointments", func(db *gorm.DB) *gorm.DB { return db.Order("appointment_date DESC") }).
		First(&customer, "id = ?", id).Error
	if err != nil {
		return nil, ClassifyDBError("get customer", err)
	}
	return &customer, nil
}

func (s *CustomerService) List(ctx context.Context, sess SessionContext, filter CustomerFilter) ([]models.Customer, int64, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Customer{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		q = q.Where("department = ?", filter.Department)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(contact_full_name) LIKE ? OR contact_phone_number LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ClassifyDBError("count customers", err)
	}
	var customers []models.Customer
	if err := paginate(q, filter.Limit, filter.Offset).Order("appointment_date DESC").Find(&customers).Error; err != nil {
		return nil, 0, ClassifyDBError("list customers", err)
	}
	return customers, total, nil
}

// Delete archives the customer together with its appointments.
func (s *CustomerService) Delete(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := sess.Scope(tx).First(&customer, "id = ?", id).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}
		if err := tx.Where("customer_id = ?", id).Delete(&models.Appointment{}).Error; err != nil {
			return ClassifyDBError("delete appointments", err)
		}
		if err := tx.Delete(&customer).Error; err != nil {
			return ClassifyDBError("delete customer", err)
		}
		return nil
	})
}
