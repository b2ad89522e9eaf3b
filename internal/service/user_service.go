package service

import (
	"fmt"
	"strings"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/pkg/utils"
)

// creatableRoles is the role-creation matrix
var creatableRoles = map[models.Role][]models.Role{
	models.RoleAdmin:  {models.RoleDoctor, models.RoleNurse, models.RoleMedicalShop},
	models.RoleDoctor: {models.RoleNurse, models.RoleMedicalShop},
}

// CanCreateRole reports whether creator may create an account with role
func CanCreateRole(creator, role models.Role) bool {
	for _, r := range creatableRoles[creator] {
		if r == role {
			return true
		}
	}
	return false
}

// doctors manage support staff only
func canManage(actor access.Actor, target *models.User) bool {
	if actor.Role != models.RoleDoctor {
		return true
	}
	return target.Role == models.RoleNurse || target.Role == models.RoleMedicalShop
}

type UserService struct {
	users UserStore
	audit AuditStore
}

func NewUserService(users UserStore, audit AuditStore) *UserService {
	return &UserService{users: users, audit: audit}
}

// CreateUserInput describes a staff account
type CreateUserInput struct {
	Email      string
	FullName   string
	Password   string
	Role       models.Role
	Speciality string
}

// Me returns the caller's own record with hospital
func (s *UserService) Me(actor access.Actor) (*models.User, error) {
	if err := access.Authorize(actor, access.OpUserMe); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(actor.UserID)
}

// Create adds a staff account to the caller's hospital
func (s *UserService) Create(actor access.Actor, in CreateUserInput) (*models.User, error) {
	if err := access.Authorize(actor, access.OpUserCreate); err != nil {
		return nil, err
	}
	if !CanCreateRole(actor.Role, in.Role) {
		return nil, apperror.Forbidden("Your role (%s) is not permitted to create a user with the role '%s'.", actor.Role, in.Role)
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	switch {
	case in.Email == "":
		return nil, apperror.Validation("email is required")
	case in.FullName == "":
		return nil, apperror.Validation("full name is required")
	case len(in.Password) < minPasswordLength:
		return nil, apperror.Validation("password must be at least %d characters", minPasswordLength)
	}

	if err := ensureEmailFree(s.users, in.Email); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		Speciality:   strings.TrimSpace(in.Speciality),
		HospitalID:   &hospitalID,
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "user_create",
		fmt.Sprintf("Created %s account %s (id: %d)", user.Role, user.Email, user.ID))

	return user, nil
}

// List returns the users of the caller's hospital
func (s *UserService) List(actor access.Actor, role models.Role, isActive *bool) ([]models.User, error) {
	if err := access.Authorize(actor, access.OpUserList); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, apperror.Validation("unknown role %q", role)
	}
	return s.users.ListUsers(models.UserFilter{HospitalID: hospitalID, Role: role, IsActive: isActive})
}

// MyStaff lists the nurses or pharmacy accounts of a doctor's hospital
func (s *UserService) MyStaff(actor access.Actor, role models.Role) ([]models.User, error) {
	if err := access.Authorize(actor, access.OpUserMyStaff); err != nil {
		return nil, err
	}
	if role != models.RoleNurse && role != models.RoleMedicalShop {
		return nil, apperror.Validation("Doctors can only view Nurses or Medical Shops.")
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	return s.users.ListUsers(models.UserFilter{HospitalID: hospitalID, Role: role})
}

// loadManaged fetches a user the caller is allowed to manage
func (s *UserService) loadManaged(actor access.Actor, id uint) (*models.User, error) {
	user, err := s.users.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if user.HospitalID == nil || !access.CanSeeTenant(actor, *user.HospitalID) {
		return nil, apperror.NotFound("user not found")
	}
	if !canManage(actor, user) {
		return nil, apperror.Forbidden("Doctors can only manage Nurses or Medical Shops.")
	}
	return user, nil
}

// SetActive activates or deactivates a staff account
func (s *UserService) SetActive(actor access.Actor, id uint, isActive bool) (*models.User, error) {
	if err := access.Authorize(actor, access.OpUserUpdate); err != nil {
		return nil, err
	}
	user, err := s.loadManaged(actor, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = isActive
	if err := s.users.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "user_update",
		fmt.Sprintf("Set is_active=%t on user %s (id: %d)", isActive, user.Email, user.ID))

	return user, nil
}

// ResetPassword initiates a password reset and returns the message for the caller
func (s *UserService) ResetPassword(actor access.Actor, id uint) (string, error) {
	if err := access.Authorize(actor, access.OpUserResetPassword); err != nil {
		return "", err
	}
	user, err := s.loadManaged(actor, id)
	if err != nil {
		return "", err
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "user_reset_password",
		fmt.Sprintf("Password reset initiated for user %s (id: %d)", user.Email, user.ID))

	return fmt.Sprintf("Password reset initiated for user %s", user.Email), nil
}
