package services

import (
	"context"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"
	"clinic-crm-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotifyConfirmation NotificationKind = models.MessageConfirmation
	NotifyReminder     NotificationKind = models.MessageReminder
	NotifyFeedback     NotificationKind = models.MessageFeedback
)

// AppointmentDetails are the booking fields chosen when a lead is converted
// or a customer is booked.
type AppointmentDetails struct {
	Department string    `json:"department" validate:"required"`
	VisitDate  time.Time `json:"visitDate" validate:"required"`
	Notes      string    `json:"notes"`
}

// Recipient is who a message goes to and which record it is about.
type Recipient struct {
	BranchID   uuid.UUID
	RecordType string
	RecordID   uuid.UUID
	Name       string
	Phone      string
	Email      string
}

// Dispatcher delivers a templated message. Callers treat it as best-effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind NotificationKind, to Recipient, details *AppointmentDetails) error
}

// CalendarSyncer pushes an appointment to the external calendar.
type CalendarSyncer interface {
	SyncAppointment(ctx context.Context, appt *models.Appointment) error
}

func appointmentRecipient(appt *models.Appointment, email string) Recipient {
	return Recipient{
		BranchID:   appt.BranchID,
		RecordType: "appointment",
		RecordID:   appt.ID,
		Name:       appt.ContactFullName,
		Phone:      appt.ContactPhoneNumber,
		Email:      email,
	}
}

func appointmentDetails(appt *models.Appointment) *AppointmentDetails {
	return &AppointmentDetails{
		Department: appt.Department,
		VisitDate:  appt.AppointmentDate,
		Notes:      appt.Notes,
	}
}

// BookingNotifier runs the side effects of a committed booking. Nothing it
// does is returned to the caller: failures are logged and counted.
type BookingNotifier struct {
	db         *gorm.DB
	dispatcher Dispatcher
	calendar   CalendarSyncer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	Now        func() time.Time
}

func NewBookingNotifier(db *gorm.DB, dispatcher Dispatcher, calendar CalendarSyncer, m *metrics.Metrics, logger *zap.Logger) *BookingNotifier {
	return &BookingNotifier{
		db:         db,
		dispatcher: dispatcher,
		calendar:   calendar,
		metrics:    m,
		logger:     logger,
		Now:        time.Now,
	}
}

// Booked syncs the appointment to the calendar, sends the confirmation and,
// when the visit is tomorrow in the branch's timezone, the reminder too.
func (n *BookingNotifier) Booked(ctx context.Context, appt *models.Appointment, email string) {
	if n == nil {
		return
	}
	if n.calendar != nil {
		if err := n.calendar.SyncAppointment(ctx, appt); err != nil {
			n.failed("calendar_sync", appt, err)
		}
	}

	to := appointmentRecipient(appt, email)
	details := appointmentDetails(appt)
	n.dispatch(ctx, NotifyConfirmation, to, details, appt)

	if utils.IsTomorrow(appt.AppointmentDate, n.Now(), n.branchLocation(ctx, appt.BranchID)) {
		n.dispatch(ctx, NotifyReminder, to, details, appt)
	}
}

// Completed sends the feedback request after a visit.
func (n *BookingNotifier) Completed(ctx context.Context, appt *models.Appointment, email string) {
	if n == nil {
		return
	}
	n.dispatch(ctx, NotifyFeedback, appointmentRecipient(appt, email), appointmentDetails(appt), appt)
}

func (n *BookingNotifier) dispatch(ctx context.Context, kind NotificationKind, to Recipient, details *AppointmentDetails, appt *models.Appointment) {
	if n.dispatcher == nil {
		return
	}
	if err := n.dispatcher.Dispatch(ctx, kind, to, details); err != nil {
		n.failed(string(kind), appt, err)
	}
}

func (n *BookingNotifier) failed(effect string, appt *models.Appointment, err error) {
	n.metrics.SideEffectFailures.WithLabelValues(effect).Inc()
	n.logger.Warn("Booking side effect failed",
		zap.String("effect", effect),
		zap.String("appointment_id", appt.ID.String()),
		zap.Error(err),
	)
}

func (n *BookingNotifier) branchLocation(ctx context.Context, branchID uuid.UUID) *time.Location {
	var branch models.Branch
	if err := n.db.WithContext(ctx).Select("id", "timezone").First(&branch, "id = ?", branchID).Error; err != nil {
		return time.UTC
	}
	return branch.Location()
}
