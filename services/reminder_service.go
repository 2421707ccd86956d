package services

import (
	"context"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultReminderSchedule = "0 9 * * *"

// ReminderService sends the day-before reminder for every appointment that
// has not had one yet.
type ReminderService struct {
	db         *gorm.DB
	dispatcher Dispatcher
	logger     *zap.Logger
	cron       *cron.Cron
	Now        func() time.Time
}

func NewReminderService(db *gorm.DB, dispatcher Dispatcher, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		db:         db,
		dispatcher: dispatcher,
		logger:     logger,
		Now:        time.Now,
	}
}

// StartScheduler registers the daily job on schedule and starts the cron
// runner. Stop it with StopScheduler.
func (s *ReminderService) StartScheduler(schedule string, loc *time.Location) error {
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.SendDailyReminders(context.Background()); err != nil {
			s.logger.Error("Daily reminders failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.logger.Info("Reminder scheduler started", zap.String("schedule", schedule))
	return nil
}

func (s *ReminderService) StopScheduler() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Reminder scheduler stopped")
}

// SendDailyReminders walks every branch and returns how many reminders were
// dispatched.
func (s *ReminderService) SendDailyReminders(ctx context.Context) (int, error) {
	s.logger.Info("Starting daily reminder processing")

	var branches []models.Branch
	if err := s.db.WithContext(ctx).Find(&branches).Error; err != nil {
		return 0, ClassifyDBError("load branches", err)
	}

	sent := 0
	for _, branch := range branches {
		n, err := s.ProcessBranchReminders(ctx, &branch)
		if err != nil {
			s.logger.Error("Branch reminders failed", zap.String("branch_id", branch.ID.String()), zap.Error(err))
			continue
		}
		sent += n
	}

	s.logger.Info("Daily reminder processing completed", zap.Int("sent", sent))
	return sent, nil
}

// SendBranchReminders runs the reminder pass for the caller's branches only.
func (s *ReminderService) SendBranchReminders(ctx context.Context, sess SessionContext) (int, error) {
	if len(sess.BranchScope) == 0 {
		return 0, nil
	}
	var branches []models.Branch
	if err := s.db.WithContext(ctx).Where("id IN ?", sess.BranchScope).Find(&branches).Error; err != nil {
		return 0, ClassifyDBError("load branches", err)
	}
	sent := 0
	for i := range branches {
		n, err := s.ProcessBranchReminders(ctx, &branches[i])
		if err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

func (s *ReminderService) ProcessBranchReminders(ctx context.Context, branch *models.Branch) (int, error) {
	loc := branch.Location()
	start, end := utils.DayRange(s.Now().In(loc).AddDate(0, 0, 1), loc)

	var appointments []models.Appointment
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND appointment_date >= ? AND appointment_date < ?", branch.ID, start.UTC(), end.UTC()).
		Where("status IN ?", []string{
			string(models.AppointmentScheduled),
			string(models.AppointmentConfirmed),
			string(models.AppointmentRescheduled),
		}).
		Find(&appointments).Error
	if err != nil {
		return 0, ClassifyDBError("load appointments", err)
	}
	if len(appointments) == 0 {
		return 0, nil
	}

	reminded, err := s.alreadyReminded(ctx, appointments)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range appointments {
		appt := &appointments[i]
		if reminded[appt.ID] {
			continue
		}
		var customer models.Customer
		email := ""
		if err := s.db.WithContext(ctx).Select("id", "contact_email").First(&customer, "id = ?", appt.CustomerID).Error; err == nil {
			email = customer.ContactEmail
		}
		if err := s.dispatcher.Dispatch(ctx, NotifyReminder, appointmentRecipient(appt, email), appointmentDetails(appt)); err != nil {
			s.logger.Warn("Reminder failed", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

type reminderLog struct {
	RecordID        uuid.UUID
	AppointmentDate *time.Time
}

// alreadyReminded marks appointments with a sent reminder for their current
// date. A reminder sent before a reschedule does not count.
func (s *ReminderService) alreadyReminded(ctx context.Context, appointments []models.Appointment) (map[uuid.UUID]bool, error) {
	ids := make([]uuid.UUID, len(appointments))
	dates := make(map[uuid.UUID]time.Time, len(appointments))
	for i, a := range appointments {
		ids[i] = a.ID
		dates[a.ID] = a.AppointmentDate
	}
	var logs []reminderLog
	err := s.db.WithContext(ctx).Model(&models.MessageLog{}).
		Select("record_id", "appointment_date").
		Where("record_id IN ? AND type = ? AND status = ?", ids, models.MessageReminder, "sent").
		Scan(&logs).Error
	if err != nil {
		return nil, ClassifyDBError("load reminder logs", err)
	}
	out := make(map[uuid.UUID]bool, len(logs))
	for _, l := range logs {
		if l.AppointmentDate == nil || l.AppointmentDate.Equal(dates[l.RecordID]) {
			out[l.RecordID] = true
		}
	}
	return out, nil
}
