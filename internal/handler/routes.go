package handler

import (
	"hms-backend/internal/config"
	"hms-backend/internal/metrics"
	"hms-backend/internal/middleware"
	"hms-backend/internal/notification"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth         *AuthHandler
	Hospital     *HospitalHandler
	User         *UserHandler
	Patient      *PatientHandler
	Appointment  *AppointmentHandler
	Prescription *PrescriptionHandler
	WebSocket    *notification.WebSocketHandler
}

// SetupRouter builds the gin engine with middleware and all API routes
func SetupRouter(cfg *config.Config, h Handlers, resolver middleware.TokenResolver, collector *metrics.Collector, log *zap.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg))
	router.Use(collector.Middleware())

	router.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": "hms-backend",
		})
	})
	router.GET("/metrics", collector.Handler())
	router.GET("/ws", h.WebSocket.Connect)

	api := router.Group("/api")
	{
		// Public routes
		api.POST("/login", h.Auth.Login)
		api.GET("/prescriptions/view/:token", h.Prescription.PublicView)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(resolver))
		{
			hospitals := protected.Group("/hospitals")
			{
				hospitals.POST("", h.Hospital.CreateHospital)
				hospitals.GET("", h.Hospital.GetHospitals)
				hospitals.DELETE("/:id", h.Hospital.DeleteHospital)
			}

			users := protected.Group("/users")
			{
				users.GET("/me", h.User.Me)
				users.GET("/my-staff", h.User.MyStaff)
				users.POST("", h.User.CreateUser)
				users.GET("", h.User.ListUsers)
				users.PUT("/:id", h.User.UpdateUser)
				users.POST("/:id/reset-password", h.User.ResetPassword)
			}

			patients := protected.Group("/patients")
			{
				patients.POST("", h.Patient.CreatePatient)
				patients.GET("", h.Patient.ListPatients)
				patients.GET("/search", h.Patient.SearchPatients)
				patients.GET("/:id/appointment-history", h.Patient.AppointmentHistory)
				patients.GET("/:id/report", h.Patient.DownloadReport)
			}

			appointments := protected.Group("/appointments")
			{
				appointments.POST("", h.Appointment.CreateAppointment)
				appointments.GET("", h.Appointment.ListAppointments)
				appointments.GET("/all", h.Appointment.ListAllAppointments)
				appointments.PUT("/:id/status/start", h.Appointment.StartConsultation)
				appointments.PUT("/:id/status/complete", h.Appointment.CompleteConsultation)
				appointments.PUT("/:id/status/cancel", h.Appointment.CancelAppointment)
				appointments.PUT("/:id/status/no-show", h.Appointment.MarkNoShow)
			}

			prescriptions := protected.Group("/prescriptions")
			{
				prescriptions.GET("/queue", h.Prescription.Queue)
				prescriptions.GET("/stats", h.Prescription.Stats)
				prescriptions.GET("/:id", h.Prescription.GetPrescription)
				prescriptions.PUT("/:id", h.Prescription.Dispense)
				prescriptions.PUT("/:id/dispense", h.Prescription.Dispense)
			}
		}
	}

	return router
}
