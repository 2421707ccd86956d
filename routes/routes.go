package routes

import (
	"net/http"

	"clinic-crm-backend/config"
	"clinic-crm-backend/controllers"
	"clinic-crm-backend/metrics"
	"clinic-crm-backend/utils"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(h *controllers.Handler, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(config.RequestID())
	r.Use(config.PerformanceLogger(logger, m))
	if cfg.SentryDSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		auth.Use(utils.AuthMiddleware(cfg.JWTSecret))
		auth.GET("/me", h.Me)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(cfg.JWTSecret))
	{
		api.POST("/users", h.CreateUser)

		// Branch routes
		branches := api.Group("/branches")
		{
			branches.GET("", h.GetBranches)
			branches.POST("", h.CreateBranch)
			branches.GET("/:id", h.GetBranch)
			branches.PUT("/:id/settings", h.UpdateBranchSettings)
			branches.GET("/:id/lead-statuses", h.GetLeadStatuses)
		}

		// Contact routes
		contacts := api.Group("/contacts")
		{
			contacts.POST("", h.CreateContact)
			contacts.GET("", h.GetContacts)
			contacts.GET("/:id", h.GetContact)
			contacts.PUT("/:id", h.UpdateContact)
			contacts.DELETE("/:id", h.DeleteContact)
		}

		// Lead routes
		leads := api.Group("/leads")
		{
			leads.POST("", h.CreateLead)
			leads.GET("", h.GetLeads)
			leads.GET("/export", h.ExportLeads)
			leads.GET("/:id", h.GetLead)
			leads.PUT("/:id", h.UpdateLead)
			leads.DELETE("/:id", h.DeleteLead)
			leads.GET("/:id/history", h.GetLeadHistory)
			leads.POST("/:id/convert", h.ConvertLead)
		}

		// Customer routes
		customers := api.Group("/customers")
		{
			customers.POST("", h.CreateCustomer)
			customers.GET("", h.GetCustomers)
			customers.GET("/:id", h.GetCustomer)
			customers.PUT("/:id", h.UpdateCustomer)
			customers.DELETE("/:id", h.DeleteCustomer)
			customers.POST("/:id/no-show", h.MarkNoShow)
			customers.POST("/:id/appointments", h.CreateAppointment)
		}

		// Appointment routes
		appointments := api.Group("/appointments")
		{
			appointments.GET("", h.GetAppointments)
			appointments.GET("/:id", h.GetAppointment)
			appointments.PUT("/:id/status", h.UpdateAppointmentStatus)
			appointments.PUT("/:id/reschedule", h.RescheduleAppointment)
		}

		// Ticket routes
		tickets := api.Group("/tickets")
		{
			tickets.POST("", h.CreateTicket)
			tickets.GET("", h.GetTickets)
			tickets.GET("/:id", h.GetTicket)
			tickets.PUT("/:id", h.UpdateTicket)
			tickets.DELETE("/:id", h.DeleteTicket)
		}

		// Notes, comments and attachments on contacts, leads, customers and tickets
		records := api.Group("/records/:kind/:id")
		{
			records.POST("/notes", h.AddNote)
			records.POST("/comments", h.AddComment)
			records.POST("/attachments", h.UploadAttachment)
			records.DELETE("/attachments/:attachmentId", h.DeleteAttachment)
		}

		// Service routes
		services := api.Group("/services")
		{
			services.POST("", h.CreateService)
			services.GET("", h.GetServices)
			services.GET("/:id", h.GetService)
			services.PUT("/:id", h.UpdateService)
			services.DELETE("/:id", h.DeleteService)
		}

		// Messaging routes
		templates := api.Group("/templates")
		{
			templates.GET("", h.GetTemplates)
			templates.PUT("", h.SaveTemplate)
			templates.DELETE("/:id", h.DeleteTemplate)
		}
		api.GET("/message-logs", h.GetMessageLogs)
		api.POST("/reminders/run", h.RunReminders)

		// Reports routes
		api.GET("/reports", h.GetReportAnalytics)

		// Dashboard routes
		api.GET("/dashboard", h.GetDashboardOverview)
	}

	return r
}
