package handler

import (
	"hms-backend/internal/access"
	"hms-backend/internal/middleware"
	"hms-backend/internal/models"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	appointmentService *service.AppointmentService
	encounterService   *service.EncounterService
	log                *zap.Logger
}

func NewAppointmentHandler(appointmentService *service.AppointmentService, encounterService *service.EncounterService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentService: appointmentService,
		encounterService:   encounterService,
		log:                log,
	}
}

func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	appointment, err := h.appointmentService.Create(middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, appointment)
}

func appointmentQuery(c *gin.Context) (service.AppointmentQuery, error) {
	var q service.AppointmentQuery
	var err error
	if q.DoctorID, err = queryID(c, "doctor_id"); err != nil {
		return q, err
	}
	if q.PatientID, err = queryID(c, "patient_id"); err != nil {
		return q, err
	}
	if q.Date, err = parseOptionalTime("appointment_date", c.Query("appointment_date")); err != nil {
		return q, err
	}
	q.PatientSex = models.Sex(c.Query("patient_gender"))
	return q, nil
}

// ListAppointments supports ?doctor_id=, ?patient_id= and ?appointment_date=
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	q, err := appointmentQuery(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	appointments, err := h.appointmentService.List(middleware.ActorFrom(c), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, appointments)
}

// ListAllAppointments is the nurse view, newest first, with ?patient_gender=
func (h *AppointmentHandler) ListAllAppointments(c *gin.Context) {
	q, err := appointmentQuery(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	appointments, err := h.appointmentService.ListAll(middleware.ActorFrom(c), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, appointments)
}

type transition func(actor access.Actor, appointmentID uint) (*models.Appointment, error)

func (h *AppointmentHandler) transition(c *gin.Context, fn transition) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	appointment, err := fn(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, appointment)
}

func (h *AppointmentHandler) StartConsultation(c *gin.Context) {
	h.transition(c, h.encounterService.Start)
}

func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	h.transition(c, h.encounterService.Cancel)
}

func (h *AppointmentHandler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.encounterService.MarkNoShow)
}

// CompleteConsultation saves the visit note and prescription and closes the appointment
func (h *AppointmentHandler) CompleteConsultation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req CompleteVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.encounterService.Complete(middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, CompleteVisitResponse{
		Message:             "Visit details saved successfully",
		VisitID:             result.Visit.ID,
		Appointment:         result.Appointment,
		Prescription:        result.Prescription,
		PrescriptionUpdated: result.PrescriptionUpdated,
	})
}
