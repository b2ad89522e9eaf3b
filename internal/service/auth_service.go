package service

import (
	"fmt"
	"strings"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/pkg/utils"
)

type AuthService struct {
	users   UserStore
	audit   AuditStore
	metrics Recorder
	now     func() time.Time
}

func NewAuthService(users UserStore, audit AuditStore, metrics Recorder) *AuthService {
	return &AuthService{
		users:   users,
		audit:   audit,
		metrics: metrics,
		now:     time.Now,
	}
}

// LoginResponse represents the response structure for login
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// Login authenticates a user by email and password and issues a bearer token
func (s *AuthService) Login(email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Validation("Please provide an email and password")
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if apperror.IsNotFound(err) {
			s.metrics.RecordAuthAttempt(false)
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		return nil, err
	}

	if !utils.ComparePassword(user.PasswordHash, password) {
		s.metrics.RecordAuthAttempt(false)
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	if !user.IsActive {
		s.metrics.RecordAuthAttempt(false)
		return nil, apperror.Forbidden("This user account has been deactivated")
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.users.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	accessToken, err := utils.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.metrics.RecordAuthAttempt(true)
	_ = s.audit.CreateAuditLog(&user.ID, "user_login", fmt.Sprintf("User %s logged in", user.Email))

	return &LoginResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

// ResolveToken validates a bearer token and loads the current user record, so
// a deactivation takes effect on the very next request.
func (s *AuthService) ResolveToken(token string) (*models.User, access.Actor, error) {
	if token == "" {
		return nil, access.Actor{}, apperror.Unauthorized("Authorization token required")
	}

	claims, err := utils.ValidateAccessToken(token)
	if err != nil {
		return nil, access.Actor{}, apperror.Unauthorized("Invalid or expired token")
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, access.Actor{}, apperror.Unauthorized("User for this token no longer exists")
		}
		return nil, access.Actor{}, err
	}

	if !user.IsActive {
		return nil, access.Actor{}, apperror.Forbidden("This user account has been deactivated")
	}

	return user, access.ActorFromUser(user), nil
}

// ResolveActor is ResolveToken without the user record
func (s *AuthService) ResolveActor(token string) (access.Actor, error) {
	_, actor, err := s.ResolveToken(token)
	return actor, err
}
