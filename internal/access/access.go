// Package access holds the authorization gate shared by every service
// operation: a per-operation role allow-list and the tenant-scope check.
package access

import (
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
)

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID       uint
	Role         models.Role
	HospitalID   *uint
	HospitalName string
	FullName     string
}

// ActorFromUser builds an Actor from a loaded user record
func ActorFromUser(u *models.User) Actor {
	actor := Actor{
		UserID:     u.ID,
		Role:       u.Role,
		HospitalID: u.HospitalID,
		FullName:   u.FullName,
	}
	if u.Hospital != nil {
		actor.HospitalName = u.Hospital.Name
	}
	return actor
}

// Operation names an action guarded by Authorize
type Operation string

const (
	OpHospitalCreate Operation = "hospital.create"
	OpHospitalList   Operation = "hospital.list"
	OpHospitalDelete Operation = "hospital.delete"

	OpUserMe            Operation = "user.me"
	OpUserCreate        Operation = "user.create"
	OpUserList          Operation = "user.list"
	OpUserMyStaff       Operation = "user.my_staff"
	OpUserUpdate        Operation = "user.update"
	OpUserResetPassword Operation = "user.reset_password"

	OpPatientCreate  Operation = "patient.create"
	OpPatientList    Operation = "patient.list"
	OpPatientSearch  Operation = "patient.search"
	OpPatientHistory Operation = "patient.history"
	OpPatientReport  Operation = "patient.report"

	OpAppointmentCreate   Operation = "appointment.create"
	OpAppointmentList     Operation = "appointment.list"
	OpAppointmentListAll  Operation = "appointment.list_all"
	OpAppointmentStart    Operation = "appointment.start"
	OpAppointmentComplete Operation = "appointment.complete"
	OpAppointmentCancel   Operation = "appointment.cancel"
	OpAppointmentNoShow   Operation = "appointment.no_show"

	OpPrescriptionQueue    Operation = "prescription.queue"
	OpPrescriptionStats    Operation = "prescription.stats"
	OpPrescriptionView     Operation = "prescription.view"
	OpPrescriptionDispense Operation = "prescription.dispense"
)

var (
	anyRole     = []models.Role{models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RoleMedicalShop}
	clinicStaff = []models.Role{models.RoleAdmin, models.RoleDoctor, models.RoleNurse}
)

var policy = map[Operation][]models.Role{
	OpHospitalCreate: {models.RoleSuperAdmin},
	OpHospitalList:   {models.RoleSuperAdmin, models.RoleAdmin},
	OpHospitalDelete: {models.RoleSuperAdmin},

	OpUserMe:            anyRole,
	OpUserCreate:        {models.RoleAdmin, models.RoleDoctor},
	OpUserList:          {models.RoleAdmin, models.RoleNurse},
	OpUserMyStaff:       {models.RoleDoctor},
	OpUserUpdate:        {models.RoleAdmin, models.RoleDoctor},
	OpUserResetPassword: {models.RoleAdmin, models.RoleDoctor},

	OpPatientCreate:  clinicStaff,
	OpPatientList:    clinicStaff,
	OpPatientSearch:  clinicStaff,
	OpPatientHistory: clinicStaff,
	OpPatientReport:  {models.RoleDoctor, models.RoleNurse},

	OpAppointmentCreate:   clinicStaff,
	OpAppointmentList:     clinicStaff,
	OpAppointmentListAll:  {models.RoleNurse},
	OpAppointmentStart:    {models.RoleDoctor},
	OpAppointmentComplete: {models.RoleDoctor},
	OpAppointmentCancel:   {models.RoleDoctor, models.RoleNurse, models.RoleAdmin},
	OpAppointmentNoShow:   {models.RoleDoctor, models.RoleNurse, models.RoleAdmin},

	OpPrescriptionQueue:    {models.RoleMedicalShop, models.RoleAdmin},
	OpPrescriptionStats:    {models.RoleMedicalShop},
	OpPrescriptionView:     anyRole,
	OpPrescriptionDispense: {models.RoleMedicalShop},
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(role models.Role, op Operation) bool {
	for _, r := range policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize fails with Forbidden when the actor's role is not in op's allow-list
func Authorize(actor Actor, op Operation) error {
	if !Allowed(actor.Role, op) {
		return apperror.Forbidden("role %s is not permitted to perform %s", actor.Role, op)
	}
	return nil
}

// TenantID returns the actor's hospital, failing with Forbidden for callers
// that are not attached to one.
func TenantID(actor Actor) (uint, error) {
	if actor.HospitalID == nil {
		return 0, apperror.Forbidden("user is not associated with a hospital")
	}
	return *actor.HospitalID, nil
}

// CanSeeTenant reports whether the actor may read or write data of hospitalID
func CanSeeTenant(actor Actor, hospitalID uint) bool {
	if actor.Role == models.RoleSuperAdmin {
		return true
	}
	return actor.HospitalID != nil && *actor.HospitalID == hospitalID
}

// CheckTenant hides entities of other tenants behind NotFound
func CheckTenant(actor Actor, hospitalID uint, entity string) error {
	if !CanSeeTenant(actor, hospitalID) {
		return apperror.NotFound(entity + " not found")
	}
	return nil
}
