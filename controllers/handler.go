package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"clinic-crm-backend/cache"
	"clinic-crm-backend/config"
	"clinic-crm-backend/metrics"
	"clinic-crm-backend/services"
	"clinic-crm-backend/storage"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler carries the services every controller needs.
type Handler struct {
	Logger   *zap.Logger
	Settings services.Settings

	Auth         *services.AuthService
	Branches     *services.BranchService
	Contacts     *services.ContactService
	Leads        *services.LeadService
	Conversions  *services.ConversionService
	Customers    *services.CustomerService
	NoShows      *services.NoShowReconciler
	Appointments *services.AppointmentService
	Tickets      *services.TicketService
	Records      *services.RecordService
	Attachments  *services.AttachmentService
	Messaging    *services.MessagingService
	Reminders    *services.ReminderService
	Catalog      *services.CatalogService
	Dashboard    *services.DashboardService
	Reports      *services.ReportService
}

// NewHandler wires every service from cfg. Messaging channels and calendar
// sync are only enabled when their credentials are configured.
func NewHandler(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, db *gorm.DB, redisClient *cache.Client, store storage.Store) *Handler {
	var whatsapp services.WhatsAppSender
	if cfg.Twilio.AccountSID != "" {
		whatsapp = services.NewTwilioWhatsAppSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber)
	}
	var email services.EmailSender
	if cfg.SendGrid.APIKey != "" {
		email = services.NewSendGridEmailSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	}
	var calendar services.CalendarSyncer
	if redisClient != nil {
		calendar = services.NewRedisCalendarQueue(redisClient, cfg.CalendarStream)
	}

	guard := services.NewDuplicateGuard()
	catalog := services.NewStatusCatalog(db, redisClient, m, logger)
	messaging := services.NewMessagingService(db, whatsapp, email, m, logger)
	notifier := services.NewBookingNotifier(db, messaging, calendar, m, logger)
	reconciler := services.NewNoShowReconciler(db, m, logger)
	contacts := services.NewContactService(db, guard, logger)
	records := services.NewRecordService(db)

	return &Handler{
		Logger: logger,
		Settings: services.Settings{
			DefaultRegion: cfg.DefaultPhoneRegion,
			Location:      cfg.Location(),
		},
		Auth:         services.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpiry(), logger),
		Branches:     services.NewBranchService(db, catalog),
		Contacts:     contacts,
		Leads:        services.NewLeadService(db, guard, contacts, catalog, m, logger),
		Conversions:  services.NewConversionService(db, notifier, m, logger),
		Customers:    services.NewCustomerService(db, reconciler, notifier, m, logger),
		NoShows:      reconciler,
		Appointments: services.NewAppointmentService(db, reconciler, notifier, m, logger),
		Tickets:      services.NewTicketService(db, logger),
		Records:      records,
		Attachments:  services.NewAttachmentService(records, store, logger),
		Messaging:    messaging,
		Reminders:    services.NewReminderService(db, messaging, logger),
		Catalog:      services.NewCatalogService(db),
		Dashboard:    services.NewDashboardService(db),
		Reports:      services.NewReportService(db),
	}
}

// session builds the caller's SessionContext from the values AuthMiddleware
// stored on the request.
func (h *Handler) session(c *gin.Context) (services.SessionContext, bool) {
	userID, err := uuid.Parse(c.GetString("userId"))
	if err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return services.SessionContext{}, false
	}

	var scope []uuid.UUID
	for _, raw := range c.GetStringSlice("branches") {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "Invalid branch scope")
			return services.SessionContext{}, false
		}
		scope = append(scope, id)
	}

	return services.SessionContext{
		User:        c.GetString("userName"),
		UserID:      userID,
		Role:        c.GetString("role"),
		BranchScope: scope,
		Settings:    h.Settings,
	}, true
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func queryID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return false
	}
	return true
}

// respondServiceError maps the service error taxonomy onto HTTP responses.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var (
		valErr  *services.ValidationError
		dupErr  *services.DuplicateRecordError
		openErr *services.DuplicateOpenLeadError
		stale   *services.StaleWriteError
		partial *services.PartialFailureError
		persist *services.PersistenceError
	)

	switch {
	case errors.As(err, &valErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": valErr.Error(), "field": valErr.Field})
	case errors.Is(err, services.ErrConversionRequired):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &dupErr):
		body := gin.H{"error": dupErr.Error()}
		if dupErr.ID != uuid.Nil {
			body["conflictingId"] = dupErr.ID
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.As(err, &openErr):
		body := gin.H{"error": openErr.Error()}
		if openErr.LeadID != uuid.Nil {
			body["conflictingId"] = openErr.LeadID
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.As(err, &stale):
		utils.RespondWithError(c, http.StatusConflict, stale.Error()+", reload and try again")
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.As(err, &partial):
		h.Logger.Error("Multi-step operation rolled back",
			zap.String("op", partial.Op),
			zap.String("step", partial.Step),
			zap.Strings("completed", partial.Completed),
			zap.Error(partial.Err),
		)
		msg := "The operation failed and was rolled back"
		if errors.As(partial.Err, &persist) {
			msg = persist.UserMessage()
		}
		utils.RespondWithError(c, http.StatusInternalServerError, msg)
	case errors.As(err, &persist):
		h.Logger.Error("Persistence error", zap.String("op", persist.Op), zap.String("kind", string(persist.Kind)), zap.Error(persist.Err))
		utils.RespondWithError(c, persistStatus(persist.Kind), persist.UserMessage())
	default:
		h.Logger.Error("Unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func persistStatus(kind services.PersistenceKind) int {
	switch kind {
	case services.PersistDuplicateKey, services.PersistForeignKey:
		return http.StatusConflict
	case services.PersistMissingField:
		return http.StatusBadRequest
	case services.PersistPermission:
		return http.StatusForbidden
	case services.PersistUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
