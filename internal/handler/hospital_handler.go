package handler

import (
	"fmt"

	"hms-backend/internal/middleware"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HospitalHandler struct {
	hospitalService *service.HospitalService
	log             *zap.Logger
}

func NewHospitalHandler(hospitalService *service.HospitalService, log *zap.Logger) *HospitalHandler {
	return &HospitalHandler{
		hospitalService: hospitalService,
		log:             log,
	}
}

// CreateHospital creates a tenant together with its admin
func (h *HospitalHandler) CreateHospital(c *gin.Context) {
	var req CreateHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	hospital, err := h.hospitalService.Create(middleware.ActorFrom(c), req.toInput())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.CreatedResponse(c, hospital)
}

// GetHospitals returns the hospitals visible to the caller
func (h *HospitalHandler) GetHospitals(c *gin.Context) {
	hospitals, err := h.hospitalService.List(middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, hospitals)
}

// DeleteHospital removes a hospital and everything that belongs to it
func (h *HospitalHandler) DeleteHospital(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	hospital, err := h.hospitalService.Delete(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.MessageResponse(c, fmt.Sprintf("Hospital '%s' and all associated data deleted successfully", hospital.Name))
}
