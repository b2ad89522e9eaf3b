package handler

import (
	"hms-backend/internal/middleware"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PrescriptionHandler struct {
	prescriptionService *service.PrescriptionService
	log                 *zap.Logger
}

func NewPrescriptionHandler(prescriptionService *service.PrescriptionService, log *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptionService: prescriptionService,
		log:                 log,
	}
}

// Queue returns prescriptions still waiting at the pharmacy
func (h *PrescriptionHandler) Queue(c *gin.Context) {
	prescriptions, err := h.prescriptionService.Queue(middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, prescriptions)
}

func (h *PrescriptionHandler) Stats(c *gin.Context) {
	stats, err := h.prescriptionService.Stats(middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, stats)
}

func (h *PrescriptionHandler) GetPrescription(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	prescription, err := h.prescriptionService.Get(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, prescription)
}

// Dispense digitizes, updates items or overrides the status of a prescription
func (h *PrescriptionHandler) Dispense(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	prescription, err := h.prescriptionService.Dispense(middleware.ActorFrom(c), id, req.toInput())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, prescription)
}

// PublicView serves the patient link, no authentication
func (h *PrescriptionHandler) PublicView(c *gin.Context) {
	view, err := h.prescriptionService.PublicView(c.Param("token"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, view)
}
