package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
)

// MinPhoneDigits is the shortest fragment a phone search will run for
const MinPhoneDigits = 5

type PatientService struct {
	patients     PatientStore
	appointments AppointmentStore
	audit        AuditStore
}

func NewPatientService(patients PatientStore, appointments AppointmentStore, audit AuditStore) *PatientService {
	return &PatientService{
		patients:     patients,
		appointments: appointments,
		audit:        audit,
	}
}

// RegisterPatientInput holds the fields of a new patient
type RegisterPatientInput struct {
	FullName    string
	PhoneNumber string
	DateOfBirth *time.Time
	Sex         models.Sex
	Height      string
	Weight      string
}

// DigitsOnly strips every non-digit from s
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Register creates a patient in the caller's hospital
func (s *PatientService) Register(actor access.Actor, in RegisterPatientInput) (*models.Patient, error) {
	if err := access.Authorize(actor, access.OpPatientCreate); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	in.FullName = strings.TrimSpace(in.FullName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	switch {
	case in.FullName == "":
		return nil, apperror.Validation("full_name is required")
	case in.PhoneNumber == "":
		return nil, apperror.Validation("phone_number is required")
	case in.Sex != "" && !in.Sex.Valid():
		return nil, apperror.Validation("sex must be one of Male, Female, Other")
	}

	_, err = s.patients.FindPatientByIdentity(hospitalID, in.FullName, in.PhoneNumber)
	switch {
	case err == nil:
		return nil, apperror.Conflict("This patient is already registered with this phone number.")
	case !apperror.IsNotFound(err):
		return nil, err
	}

	patient := &models.Patient{
		HospitalID:  hospitalID,
		FullName:    in.FullName,
		PhoneNumber: in.PhoneNumber,
		DateOfBirth: in.DateOfBirth,
		Sex:         in.Sex,
		Height:      in.Height,
		Weight:      in.Weight,
	}
	if err := s.patients.CreatePatient(patient); err != nil {
		return nil, err
	}

	_ = s.audit.CreateAuditLog(&actor.UserID, "patient_create",
		fmt.Sprintf("Registered patient %s (id: %d)", patient.FullName, patient.ID))

	return patient, nil
}

// SearchByPhone finds patients whose number contains the digits of fragment.
// Fragments with fewer than MinPhoneDigits digits match nothing.
func (s *PatientService) SearchByPhone(actor access.Actor, fragment string) ([]models.Patient, error) {
	if err := access.Authorize(actor, access.OpPatientSearch); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	digits := DigitsOnly(fragment)
	if len(digits) < MinPhoneDigits {
		return []models.Patient{}, nil
	}
	return s.patients.SearchPatientsByPhone(hospitalID, digits)
}

// List returns the hospital's patients, optionally filtered by a name or
// phone substring and by having an appointment on day
func (s *PatientService) List(actor access.Actor, search string, day *time.Time) ([]models.Patient, error) {
	if err := access.Authorize(actor, access.OpPatientList); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	filter := models.PatientFilter{HospitalID: hospitalID, Search: search}
	if day != nil {
		from, to := dayBounds(*day)
		filter.AppointmentFrom, filter.AppointmentTo = &from, &to
	}
	return s.patients.ListPatients(filter)
}

// History returns a patient's completed appointments, newest first
func (s *PatientService) History(actor access.Actor, patientID uint) ([]models.Appointment, error) {
	if err := access.Authorize(actor, access.OpPatientHistory); err != nil {
		return nil, err
	}
	patient, err := loadPatient(s.patients, actor, patientID)
	if err != nil {
		return nil, err
	}
	return completedHistory(s.appointments, patient)
}

func loadPatient(patients PatientStore, actor access.Actor, id uint) (*models.Patient, error) {
	patient, err := patients.GetPatientByID(id)
	if err != nil {
		return nil, err
	}
	if err := access.CheckTenant(actor, patient.HospitalID, "patient"); err != nil {
		return nil, err
	}
	return patient, nil
}

func completedHistory(appointments AppointmentStore, patient *models.Patient) ([]models.Appointment, error) {
	return appointments.ListAppointments(models.AppointmentFilter{
		HospitalID:  &patient.HospitalID,
		PatientID:   &patient.ID,
		Status:      models.AppointmentCompleted,
		NewestFirst: true,
	})
}

// dayBounds returns the UTC calendar day containing t as [from, to)
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
