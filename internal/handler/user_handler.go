package handler

import (
	"strconv"

	"hms-backend/internal/apperror"
	"hms-backend/internal/middleware"
	"hms-backend/internal/models"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

// Me returns the authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.Me(middleware.ActorFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	user, err := h.userService.Create(middleware.ActorFrom(c), req.toInput())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, user)
}

// ListUsers supports ?role= and ?is_active=
func (h *UserHandler) ListUsers(c *gin.Context) {
	var isActive *bool
	if raw := c.Query("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, h.log, apperror.Validation("is_active must be true or false"))
			return
		}
		isActive = &v
	}

	users, err := h.userService.List(middleware.ActorFrom(c), models.Role(c.Query("role")), isActive)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, users)
}

// MyStaff lists nurses or pharmacists of the doctor's hospital, ?role= is required
func (h *UserHandler) MyStaff(c *gin.Context) {
	users, err := h.userService.MyStaff(middleware.ActorFrom(c), models.Role(c.Query("role")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, users)
}

// UpdateUser activates or deactivates an account
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	user, err := h.userService.SetActive(middleware.ActorFrom(c), id, *req.IsActive)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, user)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	msg, err := h.userService.ResetPassword(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.MessageResponse(c, msg)
}
