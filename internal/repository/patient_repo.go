package repository

import (
	"strings"

	"hms-backend/internal/models"

	"gorm.io/gorm"
)

// likeEscaper makes user input match literally inside a LIKE pattern. Both
// mysql and postgres use backslash as the default LIKE escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepo(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// CreatePatient creates a new patient
func (r *PatientRepository) CreatePatient(patient *models.Patient) error {
	return translate(r.db.Omit("Hospital").Create(patient).Error, "patient")
}

// GetPatientByID retrieves a patient with their hospital
func (r *PatientRepository) GetPatientByID(id uint) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.Preload("Hospital").First(&patient, id).Error; err != nil {
		return nil, translate(err, "patient")
	}
	return &patient, nil
}

// FindPatientByIdentity looks a patient up by name and phone within a hospital
func (r *PatientRepository) FindPatientByIdentity(hospitalID uint, fullName, phoneNumber string) (*models.Patient, error) {
	var patient models.Patient
	err := r.db.
		Where("hospital_id = ? AND full_name = ? AND phone_number = ?", hospitalID, fullName, phoneNumber).
		First(&patient).Error
	if err != nil {
		return nil, translate(err, "patient")
	}
	return &patient, nil
}

// SearchPatientsByPhone returns patients whose phone number contains digits
func (r *PatientRepository) SearchPatientsByPhone(hospitalID uint, digits string) ([]models.Patient, error) {
	var patients []models.Patient
	err := r.db.
		Where("hospital_id = ? AND phone_number LIKE ?", hospitalID, "%"+digits+"%").
		Order("id ASC").
		Find(&patients).Error
	return patients, err
}

// ListPatients returns a hospital's patients ordered by name
func (r *PatientRepository) ListPatients(filter models.PatientFilter) ([]models.Patient, error) {
	var patients []models.Patient
	query := r.db.Where("hospital_id = ?", filter.HospitalID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR phone_number LIKE ?", like, like)
	}
	if filter.AppointmentFrom != nil && filter.AppointmentTo != nil {
		booked := r.db.Model(&models.Appointment{}).
			Select("patient_id").
			Where("hospital_id = ? AND appointment_time >= ? AND appointment_time < ?",
				filter.HospitalID, *filter.AppointmentFrom, *filter.AppointmentTo)
		query = query.Where("id IN (?)", booked)
	}
	err := query.Order("full_name ASC").Find(&patients).Error
	return patients, err
}
