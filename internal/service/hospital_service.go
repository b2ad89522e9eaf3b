package service

import (
	"fmt"
	"strings"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/pkg/utils"
)

const minPasswordLength = 6

type HospitalService struct {
	hospitals HospitalStore
	users     UserStore
	audit     AuditStore
}

func NewHospitalService(hospitals HospitalStore, users UserStore, audit AuditStore) *HospitalService {
	return &HospitalService{
		hospitals: hospitals,
		users:     users,
		audit:     audit,
	}
}

// CreateHospitalInput describes a new tenant and its first administrator
type CreateHospitalInput struct {
	Name          string
	Address       string
	AdminEmail    string
	AdminFullName string
	AdminPassword string
}

// Create creates a hospital together with its admin user
func (s *HospitalService) Create(actor access.Actor, in CreateHospitalInput) (*models.Hospital, error) {
	if err := access.Authorize(actor, access.OpHospitalCreate); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.AdminEmail = strings.ToLower(strings.TrimSpace(in.AdminEmail))
	in.AdminFullName = strings.TrimSpace(in.AdminFullName)
	switch {
	case in.Name == "":
		return nil, apperror.Validation("hospital name is required")
	case in.AdminEmail == "":
		return nil, apperror.Validation("admin email is required")
	case in.AdminFullName == "":
		return nil, apperror.Validation("admin full name is required")
	case len(in.AdminPassword) < minPasswordLength:
		return nil, apperror.Validation("admin password must be at least %d characters", minPasswordLength)
	}

	if err := s.ensureNameFree(in.Name); err != nil {
		return nil, err
	}
	if err := ensureEmailFree(s.users, in.AdminEmail); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hospital := &models.Hospital{Name: in.Name, Address: strings.TrimSpace(in.Address)}
	admin := &models.User{
		Email:        in.AdminEmail,
		FullName:     in.AdminFullName,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.hospitals.CreateHospitalWithAdmin(hospital, admin); err != nil {
		return nil, err
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "hospital_create",
		fmt.Sprintf("Created hospital %s (id: %d) with admin %s", hospital.Name, hospital.ID, admin.Email))

	return hospital, nil
}

func (s *HospitalService) ensureNameFree(name string) error {
	_, err := s.hospitals.GetHospitalByName(name)
	switch {
	case err == nil:
		return apperror.Conflict("A hospital with this name already exists.")
	case apperror.IsNotFound(err):
		return nil
	default:
		return err
	}
}

// List returns every hospital to a super_admin and the caller's own hospital
// to everyone else
func (s *HospitalService) List(actor access.Actor) ([]models.Hospital, error) {
	if err := access.Authorize(actor, access.OpHospitalList); err != nil {
		return nil, err
	}

	if actor.Role == models.RoleSuperAdmin {
		return s.hospitals.GetAllHospitals()
	}

	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	hospital, err := s.hospitals.GetHospitalByID(hospitalID)
	if err != nil {
		return nil, err
	}
	return []models.Hospital{*hospital}, nil
}

// Delete removes a hospital and everything scoped to it
func (s *HospitalService) Delete(actor access.Actor, id uint) (*models.Hospital, error) {
	if err := access.Authorize(actor, access.OpHospitalDelete); err != nil {
		return nil, err
	}

	hospital, err := s.hospitals.GetHospitalByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.hospitals.DeleteHospitalCascade(id); err != nil {
		return nil, fmt.Errorf("failed to delete hospital: %w", err)
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "hospital_delete",
		fmt.Sprintf("Deleted hospital %s (id: %d) and all its data", hospital.Name, hospital.ID))

	return hospital, nil
}

func ensureEmailFree(users UserStore, email string) error {
	_, err := users.GetUserByEmail(email)
	switch {
	case err == nil:
		return apperror.Conflict("A user with this email already exists.")
	case apperror.IsNotFound(err):
		return nil
	default:
		return err
	}
}
