package handler

import (
	"strconv"

	"hms-backend/internal/apperror"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err using the status of its kind. Internal errors are
// logged and reported with a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperror.HTTPStatus(err)
	if apperror.KindOf(err) == apperror.KindInternal {
		log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("requestID")),
			zap.Error(err),
		)
		utils.ErrorResponse(c, status, "Internal server error")
		return
	}
	utils.ErrorResponse(c, status, apperror.PublicMessage(err))
}

// bindError reports a malformed request body
func bindError(c *gin.Context, log *zap.Logger, err error) {
	respondError(c, log, apperror.Validation("Invalid request body: %s", err.Error()))
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid %s: %q", name, c.Param(name))
	}
	return uint(id), nil
}

// queryID parses an optional numeric query parameter
func queryID(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil, apperror.Validation("invalid %s: %q", name, raw)
	}
	v := uint(id)
	return &v, nil
}
