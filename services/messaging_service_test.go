package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"
	"clinic-crm-backend/testutil"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type fakeWhatsApp struct {
	sent []sentMessage
	err  error
}

func (f *fakeWhatsApp) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Body: body})
	return "SM" + uuid.NewString()[:8], nil
}

type fakeEmail struct {
	sent []sentMessage
	err  error
}

func (f *fakeEmail) SendEmail(ctx context.Context, toName, toEmail, subject, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: toEmail, Subject: subject, Body: body})
	return "msg-1", nil
}

type messagingFixture struct {
	db       *gorm.DB
	svc      *MessagingService
	whatsapp *fakeWhatsApp
	email    *fakeEmail
	metrics  *metrics.Metrics
	branch   *models.Branch
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	f := &messagingFixture{
		db:       db,
		whatsapp: &fakeWhatsApp{},
		email:    &fakeEmail{},
		metrics:  metrics.New(),
		branch:   testutil.CreateBranch(t, db),
	}
	require.NoError(t, db.Model(f.branch).Select("EmailNotifications").Updates(models.Branch{EmailNotifications: true}).Error)
	f.svc = NewMessagingService(db, f.whatsapp, f.email, f.metrics, zap.NewNop())
	f.svc.Now = testutil.FixedClock(testNow)
	return f
}

func (f *messagingFixture) recipient() Recipient {
	return Recipient{
		BranchID:   f.branch.ID,
		RecordType: "appointment",
		RecordID:   uuid.New(),
		Name:       "Huda",
		Phone:      "+971501112233",
		Email:      "huda@example.com",
	}
}

func TestMessagingService_DispatchAllChannels(t *testing.T) {
	f := newMessagingFixture(t)
	to := f.recipient()
	details := &AppointmentDetails{Department: "Dental", VisitDate: time.Date(2025, 3, 11, 15, 30, 0, 0, time.UTC)}

	require.NoError(t, f.svc.Dispatch(context.Background(), NotifyConfirmation, to, details))

	require.Len(t, f.whatsapp.sent, 1)
	assert.Equal(t, "+971501112233", f.whatsapp.sent[0].To)
	assert.Equal(t, "Hi Huda, your Dental appointment is confirmed for Tue, 11 Mar 2025 15:30.", f.whatsapp.sent[0].Body)
	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "Your appointment is confirmed", f.email.sent[0].Subject)

	logs, err := f.svc.MessageLogs(context.Background(), adminSession(f.branch.ID), to.RecordID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, "sent", l.Status)
		assert.Equal(t, models.MessageConfirmation, l.Type)
		assert.NotEmpty(t, l.ProviderID)
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.NotificationsSent.WithLabelValues("confirmation", "whatsapp", "sent")))
}

func TestMessagingService_UsesBranchTemplate(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveTemplate(ctx, adminSession(f.branch.ID), TemplateInput{
		BranchID: f.branch.ID,
		Type:     models.MessageReminder,
		Channel:  models.ChannelWhatsApp,
		Message:  "[CustomerName], see you tomorrow at [Department]!",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Dispatch(ctx, NotifyReminder, f.recipient(), &AppointmentDetails{Department: "Laser"}))
	require.Len(t, f.whatsapp.sent, 1)
	assert.Equal(t, "Huda, see you tomorrow at Laser!", f.whatsapp.sent[0].Body)

	// An inactive template falls back to the built-in text.
	inactive := false
	_, err = f.svc.SaveTemplate(ctx, adminSession(f.branch.ID), TemplateInput{
		BranchID: f.branch.ID,
		Type:     models.MessageReminder,
		Channel:  models.ChannelWhatsApp,
		Message:  "unused",
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Dispatch(ctx, NotifyReminder, f.recipient(), &AppointmentDetails{Department: "Laser"}))
	assert.Contains(t, f.whatsapp.sent[1].Body, "a reminder of your Laser appointment")

	templates, err := f.svc.ListTemplates(ctx, adminSession(f.branch.ID), f.branch.ID)
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestMessagingService_ChannelToggles(t *testing.T) {
	f := newMessagingFixture(t)
	require.NoError(t, f.db.Model(f.branch).
		Select("WhatsAppNotifications", "EmailNotifications").
		Updates(models.Branch{}).Error)

	require.NoError(t, f.svc.Dispatch(context.Background(), NotifyFeedback, f.recipient(), nil))
	assert.Empty(t, f.whatsapp.sent)
	assert.Empty(t, f.email.sent)
}

func TestMessagingService_PartialAndTotalFailure(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()
	f.whatsapp.err = errors.New("twilio: 63016")

	to := f.recipient()
	require.NoError(t, f.svc.Dispatch(ctx, NotifyConfirmation, to, nil))

	var failed models.MessageLog
	require.NoError(t, f.db.First(&failed, "record_id = ? AND channel = ?", to.RecordID, models.ChannelWhatsApp).Error)
	assert.Equal(t, "failed", failed.Status)
	assert.Contains(t, failed.ErrorMessage, "63016")

	f.email.err = errors.New("sendgrid: 401")
	err := f.svc.Dispatch(ctx, NotifyConfirmation, to, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "63016")
	assert.Contains(t, err.Error(), "401")
}

func TestMessagingService_TemplateScope(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveTemplate(ctx, agentSession(uuid.New()), TemplateInput{
		BranchID: f.branch.ID,
		Type:     models.MessageFeedback,
		Channel:  models.ChannelEmail,
		Message:  "x",
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SaveTemplate(ctx, adminSession(f.branch.ID), TemplateInput{BranchID: f.branch.ID, Type: "birthday", Channel: "email", Message: "x"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "type", valErr.Field)

	assert.ErrorIs(t, f.svc.DeleteTemplate(ctx, adminSession(f.branch.ID), uuid.New()), ErrNotFound)
}

func TestCreateDefaultTemplates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	branch := testutil.CreateBranch(t, db)

	require.NoError(t, CreateDefaultTemplates(db, branch.ID))

	var templates []models.MessageTemplate
	require.NoError(t, db.Where("branch_id = ?", branch.ID).Find(&templates).Error)
	assert.Len(t, templates, 6)
	for _, tmpl := range templates {
		assert.True(t, tmpl.IsActive)
		if tmpl.Channel == models.ChannelEmail {
			assert.NotEmpty(t, tmpl.Subject)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	dubai, err := time.LoadLocation("Asia/Dubai")
	require.NoError(t, err)

	got := RenderTemplate("[CustomerName] / [Department] / [AppointmentDate]",
		Recipient{Name: "Ali"},
		&AppointmentDetails{Department: "ENT", VisitDate: time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)},
		dubai)
	assert.Equal(t, "Ali / ENT / Tue, 11 Mar 2025 10:00", got)

	assert.Equal(t, "Hi Ali, ", RenderTemplate("Hi [CustomerName], [AppointmentDate]", Recipient{Name: "Ali"}, nil, time.UTC))
}

func TestWhatsappAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+971501112233", whatsappAddress("+971501112233"))
	assert.Equal(t, "whatsapp:+14155238886", whatsappAddress("whatsapp:+14155238886"))
}
