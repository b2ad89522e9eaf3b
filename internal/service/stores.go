package service

import (
	"time"

	"hms-backend/internal/models"
)

// The stores below are implemented by the gorm repositories. Lookups by id
// fail with an apperror NotFound when the row does not exist.

type HospitalStore interface {
	CreateHospitalWithAdmin(hospital *models.Hospital, admin *models.User) error
	GetAllHospitals() ([]models.Hospital, error)
	GetHospitalByID(id uint) (*models.Hospital, error)
	GetHospitalByName(name string) (*models.Hospital, error)
	DeleteHospitalCascade(id uint) error
}

type UserStore interface {
	CreateUser(user *models.User) error
	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	ListUsers(filter models.UserFilter) ([]models.User, error)
	UpdateUser(user *models.User) error
}

type PatientStore interface {
	CreatePatient(patient *models.Patient) error
	GetPatientByID(id uint) (*models.Patient, error)
	FindPatientByIdentity(hospitalID uint, fullName, phoneNumber string) (*models.Patient, error)
	SearchPatientsByPhone(hospitalID uint, digits string) ([]models.Patient, error)
	ListPatients(filter models.PatientFilter) ([]models.Patient, error)
}

type AppointmentStore interface {
	CreateAppointment(appointment *models.Appointment) error
	GetAppointmentByID(id uint) (*models.Appointment, error)
	UpdateAppointment(appointment *models.Appointment) error
	StartConsultation(appointment *models.Appointment, visit *models.Visit) error
	ListAppointments(filter models.AppointmentFilter) ([]models.Appointment, error)
}

type VisitStore interface {
	GetVisitByID(id uint) (*models.Visit, error)
	SaveVisit(visit *models.Visit) error
	// SaveVisitWithPrescription creates prescription, links it to visit and
	// saves visit, all or nothing
	SaveVisitWithPrescription(visit *models.Visit, prescription *models.Prescription) error
}

type PrescriptionStore interface {
	GetPrescriptionByID(id uint) (*models.Prescription, error)
	GetPrescriptionByToken(token string) (*models.Prescription, error)
	SavePrescription(prescription *models.Prescription) error
	GetPharmacyQueue(hospitalID uint) ([]models.Prescription, error)
	CountPrescriptions(hospitalID uint, status models.PrescriptionStatus, since *time.Time) (int64, error)
}

type AuditStore interface {
	CreateAuditLog(userID *uint, action string, details string) error
}

// Recorder receives business metrics
type Recorder interface {
	RecordTransition(entity, to string)
	RecordNotification(event string)
	RecordSMS(success bool)
	RecordAuthAttempt(success bool)
}

// NopRecorder discards metrics
type NopRecorder struct{}

func (NopRecorder) RecordTransition(string, string) {}
func (NopRecorder) RecordNotification(string)       {}
func (NopRecorder) RecordSMS(bool)                  {}
func (NopRecorder) RecordAuthAttempt(bool)          {}
