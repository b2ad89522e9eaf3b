package handler

import (
	"fmt"
	"net/http"

	"hms-backend/internal/middleware"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PatientHandler struct {
	patientService *service.PatientService
	reportService  *service.ReportService
	log            *zap.Logger
}

func NewPatientHandler(patientService *service.PatientService, reportService *service.ReportService, log *zap.Logger) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		reportService:  reportService,
		log:            log,
	}
}

func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	patient, err := h.patientService.Register(middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, patient)
}

// ListPatients supports ?search= and ?date=YYYY-MM-DD
func (h *PatientHandler) ListPatients(c *gin.Context) {
	day, err := parseOptionalTime("date", c.Query("date"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	patients, err := h.patientService.List(middleware.ActorFrom(c), c.Query("search"), day)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, patients)
}

// SearchPatients matches ?phone_number= as a digit fragment
func (h *PatientHandler) SearchPatients(c *gin.Context) {
	fragment := c.Query("phone_number")
	if fragment == "" {
		fragment = c.Query("phone")
	}
	patients, err := h.patientService.SearchByPhone(middleware.ActorFrom(c), fragment)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, patients)
}

// AppointmentHistory returns the patient's completed appointments
func (h *PatientHandler) AppointmentHistory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	history, err := h.patientService.History(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, history)
}

// DownloadReport streams the patient's history as a spreadsheet attachment
func (h *PatientHandler) DownloadReport(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	file, err := h.reportService.PatientReport(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
