package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WhatsAppSender delivers a WhatsApp message and returns the provider id.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
}

// EmailSender delivers an email and returns the provider id.
type EmailSender interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, body string) (string, error)
}

type TemplateInput struct {
	BranchID uuid.UUID `json:"branchId"`
	Type     string    `json:"type" validate:"required,oneof=confirmation reminder feedback"`
	Channel  string    `json:"channel" validate:"required,oneof=whatsapp email"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message" validate:"required"`
	IsActive *bool     `json:"isActive"`
}

var defaultTemplates = map[string]string{
	models.MessageConfirmation: "Hi [CustomerName], your [Department] appointment is confirmed for [AppointmentDate].",
	models.MessageReminder:     "Hi [CustomerName], a reminder of your [Department] appointment tomorrow, [AppointmentDate].",
	models.MessageFeedback:     "Hi [CustomerName], thank you for visiting our [Department] team. We would love to hear your feedback.",
}

var defaultSubjects = map[string]string{
	models.MessageConfirmation: "Your appointment is confirmed",
	models.MessageReminder:     "Appointment reminder",
	models.MessageFeedback:     "How was your visit?",
}

// MessagingService renders branch templates and sends them over the
// channels the branch has enabled. It implements Dispatcher.
type MessagingService struct {
	db       *gorm.DB
	whatsapp WhatsAppSender
	email    EmailSender
	metrics  *metrics.Metrics
	logger   *zap.Logger
	Now      func() time.Time
}

func NewMessagingService(db *gorm.DB, whatsapp WhatsAppSender, email EmailSender, m *metrics.Metrics, logger *zap.Logger) *MessagingService {
	return &MessagingService{
		db:       db,
		whatsapp: whatsapp,
		email:    email,
		metrics:  m,
		logger:   logger,
		Now:      time.Now,
	}
}

// Dispatch sends kind to every enabled channel the recipient can be reached
// on and logs each attempt. It fails only when every attempt failed.
func (s *MessagingService) Dispatch(ctx context.Context, kind NotificationKind, to Recipient, details *AppointmentDetails) error {
	var branch models.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", to.BranchID).Error; err != nil {
		return ClassifyDBError("load branch", err)
	}

	var channels []string
	if branch.WhatsAppNotifications && to.Phone != "" && s.whatsapp != nil {
		channels = append(channels, models.ChannelWhatsApp)
	}
	if branch.EmailNotifications && to.Email != "" && s.email != nil {
		channels = append(channels, models.ChannelEmail)
	}
	if len(channels) == 0 {
		s.logger.Debug("No channel available for message",
			zap.String("kind", string(kind)),
			zap.String("record_id", to.RecordID.String()),
		)
		return nil
	}

	var errs []error
	for _, channel := range channels {
		if err := s.send(ctx, &branch, kind, channel, to, details); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	if len(errs) == len(channels) {
		return errors.Join(errs...)
	}
	return nil
}

func (s *MessagingService) send(ctx context.Context, branch *models.Branch, kind NotificationKind, channel string, to Recipient, details *AppointmentDetails) error {
	tmpl, err := s.activeTemplate(ctx, branch.ID, string(kind), channel)
	if err != nil {
		return err
	}
	body := RenderTemplate(tmpl.Message, to, details, branch.Location())

	var providerID string
	var recipient string
	switch channel {
	case models.ChannelWhatsApp:
		recipient = to.Phone
		providerID, err = s.whatsapp.SendWhatsApp(ctx, to.Phone, body)
	case models.ChannelEmail:
		recipient = to.Email
		subject := tmpl.Subject
		if subject == "" {
			subject = defaultSubjects[string(kind)]
		}
		providerID, err = s.email.SendEmail(ctx, to.Name, to.Email, subject, body)
	}

	entry := models.MessageLog{
		BranchID:   branch.ID,
		RecordType: to.RecordType,
		RecordID:   to.RecordID,
		Type:       string(kind),
		Channel:    channel,
		Recipient:  recipient,
		Message:    body,
		Status:     "sent",
		ProviderID: providerID,
		SentAt:     s.Now(),
	}
	if tmpl.ID != uuid.Nil {
		id := tmpl.ID
		entry.TemplateID = &id
	}
	if details != nil && !details.VisitDate.IsZero() {
		at := details.VisitDate.UTC()
		entry.AppointmentDate = &at
	}
	if err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	}
	s.metrics.NotificationsSent.WithLabelValues(string(kind), channel, entry.Status).Inc()

	if logErr := s.db.WithContext(ctx).Create(&entry).Error; logErr != nil {
		s.logger.Error("Failed to log message", zap.String("record_id", to.RecordID.String()), zap.Error(logErr))
	}
	if err != nil {
		s.logger.Warn("Message delivery failed",
			zap.String("kind", string(kind)),
			zap.String("channel", channel),
			zap.String("record_id", to.RecordID.String()),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("Message sent",
		zap.String("kind", string(kind)),
		zap.String("channel", channel),
		zap.String("provider_id", providerID),
	)
	return nil
}

// activeTemplate returns the branch template for (kind, channel), or the
// built-in default when the branch has none active.
func (s *MessagingService) activeTemplate(ctx context.Context, branchID uuid.UUID, kind, channel string) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND type = ? AND channel = ? AND is_active = ?", branchID, kind, channel, true).
		First(&tmpl).Error
	if err == nil {
		return &tmpl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ClassifyDBError("load template", err)
	}
	return &models.MessageTemplate{
		BranchID: branchID,
		Type:     kind,
		Channel:  channel,
		Subject:  defaultSubjects[kind],
		Message:  defaultTemplates[kind],
		IsActive: true,
	}, nil
}

// RenderTemplate fills the [CustomerName], [AppointmentDate] and
// [Department] placeholders.
func RenderTemplate(message string, to Recipient, details *AppointmentDetails, loc *time.Location) string {
	var date, department string
	if details != nil {
		department = details.Department
		if !details.VisitDate.IsZero() {
			date = details.VisitDate.In(loc).Format("Mon, 02 Jan 2006 15:04")
		}
	}
	return strings.NewReplacer(
		"[CustomerName]", to.Name,
		"[AppointmentDate]", date,
		"[Department]", department,
	).Replace(message)
}

// CreateDefaultTemplates seeds one template per kind and channel for a new
// branch.
func CreateDefaultTemplates(tx *gorm.DB, branchID uuid.UUID) error {
	for _, kind := range []string{models.MessageConfirmation, models.MessageReminder, models.MessageFeedback} {
		for _, channel := range []string{models.ChannelWhatsApp, models.ChannelEmail} {
			tmpl := models.MessageTemplate{
				BranchID: branchID,
				Type:     kind,
				Channel:  channel,
				Message:  defaultTemplates[kind],
				IsActive: true,
			}
			if channel == models.ChannelEmail {
				tmpl.Subject = defaultSubjects[kind]
			}
			if err := tx.Create(&tmpl).Error; err != nil {
				return ClassifyDBError("create default template", err)
			}
		}
	}
	return nil
}

func (s *MessagingService) ListTemplates(ctx context.Context, sess SessionContext, branchID uuid.UUID) ([]models.MessageTemplate, error) {
	q := sess.Scope(s.db.WithContext(ctx))
	if branchID != uuid.Nil {
		q = q.Where("branch_id = ?", branchID)
	}
	var templates []models.MessageTemplate
	if err := q.Order("type, channel").Find(&templates).Error; err != nil {
		return nil, ClassifyDBError("list templates", err)
	}
	return templates, nil
}

// SaveTemplate creates the template for (branch, type, channel) or replaces
// the existing one.
func (s *MessagingService) SaveTemplate(ctx context.Context, sess SessionContext, input TemplateInput) (*models.MessageTemplate, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branchID, err := sess.ResolveBranch(input.BranchID)
	if err != nil {
		return nil, err
	}

	var tmpl models.MessageTemplate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("branch_id = ? AND type = ? AND channel = ?", branchID, input.Type, input.Channel).First(&tmpl).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return ClassifyDBError("load template", err)
		}
		tmpl.BranchID = branchID
		tmpl.Type = input.Type
		tmpl.Channel = input.Channel
		tmpl.Subject = input.Subject
		tmpl.Message = input.Message
		tmpl.IsActive = input.IsActive == nil || *input.IsActive
		return ClassifyDBError("save template", tx.Save(&tmpl).Error)
	})
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *MessagingService) DeleteTemplate(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	res := sess.Scope(s.db.WithContext(ctx)).Where("id = ?", id).Delete(&models.MessageTemplate{})
	if res.Error != nil {
		return ClassifyDBError("delete template", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MessageLogs returns the messages sent about one record, newest first.
func (s *MessagingService) MessageLogs(ctx context.Context, sess SessionContext, recordID uuid.UUID) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	err := sess.Scope(s.db.WithContext(ctx)).
		Where("record_id = ?", recordID).
		Order("sent_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, ClassifyDBError("list message logs", err)
	}
	return logs, nil
}
