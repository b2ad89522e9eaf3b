package middleware

import (
	"net/http"
	"strings"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	actorKey = "actor"
	userKey  = "currentUser"
)

// TokenResolver turns a bearer token into the current user
type TokenResolver interface {
	ResolveToken(token string) (*models.User, access.Actor, error)
}

// AuthMiddleware validates the bearer token and loads the caller. Inactive
// users are rejected with 403.
func AuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
			c.Abort()
			return
		}

		user, actor, err := resolver.ResolveToken(parts[1])
		if err != nil {
			utils.ErrorResponse(c, apperror.HTTPStatus(err), apperror.PublicMessage(err))
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Set(userKey, user)
		c.Next()
	}
}

// ActorFrom returns the caller set by AuthMiddleware
func ActorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Actor{}
}

// CurrentUser returns the user record loaded by AuthMiddleware
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
