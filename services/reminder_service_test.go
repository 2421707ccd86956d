package services

import (
	"context"
	"testing"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"
	"clinic-crm-backend/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createAppointment(t *testing.T, db *gorm.DB, customer *models.Customer, at time.Time, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		BranchID:           customer.BranchID,
		CustomerID:         customer.ID,
		ContactFullName:    customer.ContactFullName,
		ContactPhoneNumber: customer.ContactPhoneNumber,
		Department:         "Dermatology",
		AppointmentDate:    at,
		Status:             status,
	}
	require.NoError(t, db.Create(appt).Error)
	return appt
}

func TestReminderService_SendsOncePerAppointment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	branch := testutil.CreateBranch(t, db)
	contact := testutil.CreateContact(t, db, branch.ID)
	customer := &models.Customer{
		BranchID:           branch.ID,
		ContactID:          contact.ID,
		ContactFullName:    contact.FullName,
		ContactPhoneNumber: contact.PhoneNumber,
		Status:             models.CustomerBooked,
	}
	require.NoError(t, db.Create(customer).Error)

	tomorrow := testNow.Add(26 * time.Hour)
	due := createAppointment(t, db, customer, tomorrow, models.AppointmentScheduled)
	createAppointment(t, db, customer, tomorrow, models.AppointmentCancelled)
	createAppointment(t, db, customer, testNow.Add(72*time.Hour), models.AppointmentConfirmed)
	createAppointment(t, db, customer, testNow.Add(2*time.Hour), models.AppointmentScheduled)

	whatsapp := &fakeWhatsApp{}
	messaging := NewMessagingService(db, whatsapp, nil, metrics.New(), zap.NewNop())
	messaging.Now = testutil.FixedClock(testNow)
	svc := NewReminderService(db, messaging, zap.NewNop())
	svc.Now = testutil.FixedClock(testNow)
	ctx := context.Background()

	sent, err := svc.SendDailyReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, whatsapp.sent, 1)
	assert.Equal(t, contact.PhoneNumber, whatsapp.sent[0].To)

	var logs []models.MessageLog
	require.NoError(t, db.Find(&logs, "record_id = ?", due.ID).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.MessageReminder, logs[0].Type)

	sent, err = svc.SendDailyReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, whatsapp.sent, 1)
}

func TestReminderService_RetriesFailedReminder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	branch := testutil.CreateBranch(t, db)
	contact := testutil.CreateContact(t, db, branch.ID)
	customer := &models.Customer{
		BranchID:           branch.ID,
		ContactID:          contact.ID,
		ContactFullName:    contact.FullName,
		ContactPhoneNumber: contact.PhoneNumber,
		Status:             models.CustomerBooked,
	}
	require.NoError(t, db.Create(customer).Error)
	createAppointment(t, db, customer, testNow.Add(24*time.Hour), models.AppointmentConfirmed)

	whatsapp := &fakeWhatsApp{err: assert.AnError}
	messaging := NewMessagingService(db, whatsapp, nil, metrics.New(), zap.NewNop())
	svc := NewReminderService(db, messaging, zap.NewNop())
	svc.Now = testutil.FixedClock(testNow)

	sent, err := svc.ProcessBranchReminders(context.Background(), branch)
	require.NoError(t, err)
	assert.Zero(t, sent)

	whatsapp.err = nil
	sent, err = svc.ProcessBranchReminders(context.Background(), branch)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestReminderService_BranchTimezone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	branch := testutil.CreateBranch(t, db)
	require.NoError(t, db.Model(branch).Update("timezone", "Asia/Dubai").Error)
	branch.Timezone = "Asia/Dubai"
	contact := testutil.CreateContact(t, db, branch.ID)
	customer := &models.Customer{
		BranchID:           branch.ID,
		ContactID:          contact.ID,
		ContactFullName:    contact.FullName,
		ContactPhoneNumber: contact.PhoneNumber,
		Status:             models.CustomerBooked,
	}
	require.NoError(t, db.Create(customer).Error)

	// Tomorrow in Dubai runs from 20:00 UTC on the 10th to 20:00 UTC on
	// the 11th.
	inWindow := createAppointment(t, db, customer, time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC), models.AppointmentScheduled)
	createAppointment(t, db, customer, time.Date(2025, 3, 11, 21, 0, 0, 0, time.UTC), models.AppointmentScheduled)

	dispatcher := &fakeDispatcher{}
	svc := NewReminderService(db, dispatcher, zap.NewNop())
	svc.Now = testutil.FixedClock(testNow)

	sent, err := svc.ProcessBranchReminders(context.Background(), branch)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, inWindow.ID, dispatcher.calls[0].To.RecordID)
}

func TestReminderService_Scheduler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewReminderService(db, &fakeDispatcher{}, zap.NewNop())

	assert.Error(t, svc.StartScheduler("not a schedule", nil))
	require.NoError(t, svc.StartScheduler("", time.UTC))
	svc.StopScheduler()
	svc.StopScheduler()
}

func TestReminderService_RemindsAgainAfterReschedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.newCustomer(t)
	require.Len(t, customer.Appointments, 1)
	appt := customer.Appointments[0]

	whatsapp := &fakeWhatsApp{}
	messaging := NewMessagingService(env.db, whatsapp, nil, metrics.New(), zap.NewNop())
	svc := NewReminderService(env.db, messaging, zap.NewNop())

	// The visit is three days out, so the reminder goes two days from now.
	svc.Now = testutil.FixedClock(testNow.Add(48 * time.Hour))
	sent, err := svc.SendDailyReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	newDate := testNow.Add(10 * 24 * time.Hour)
	_, err = env.appointments.Reschedule(ctx, env.admin(), appt.ID, RescheduleInput{
		AppointmentDate: newDate,
		Version:         appt.Version,
	})
	require.NoError(t, err)

	svc.Now = testutil.FixedClock(testNow.Add(9 * 24 * time.Hour))
	sent, err = svc.SendDailyReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, whatsapp.sent, 2)

	var logs []models.MessageLog
	require.NoError(t, env.db.Order("sent_at").Find(&logs, "record_id = ? AND type = ?", appt.ID, models.MessageReminder).Error)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[1].AppointmentDate)
	assert.True(t, newDate.Equal(*logs[1].AppointmentDate))

	sent, err = svc.SendDailyReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
