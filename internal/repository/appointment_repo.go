package repository

import (
	"hms-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepo(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// CreateAppointment creates a new appointment
func (r *AppointmentRepository) CreateAppointment(appointment *models.Appointment) error {
	return r.db.Omit(clause.Associations).Create(appointment).Error
}

// GetAppointmentByID retrieves an appointment with its patient and doctor
func (r *AppointmentRepository) GetAppointmentByID(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.Preload("Patient").Preload("Doctor").First(&appointment, id).Error
	if err != nil {
		return nil, translate(err, "appointment")
	}
	return &appointment, nil
}

// UpdateAppointment persists the appointment's own columns
func (r *AppointmentRepository) UpdateAppointment(appointment *models.Appointment) error {
	return r.db.Omit(clause.Associations).Save(appointment).Error
}

// StartConsultation creates the visit and links it to the appointment atomically.
// The unique index on visits.appointment_id rejects a second visit.
func (r *AppointmentRepository) StartConsultation(appointment *models.Appointment, visit *models.Visit) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		visit.AppointmentID = appointment.ID
		if err := tx.Omit(clause.Associations).Create(visit).Error; err != nil {
			return translate(err, "visit")
		}
		appointment.VisitID = &visit.ID
		return tx.Omit(clause.Associations).Save(appointment).Error
	})
}

// ListAppointments returns appointments matching filter with patient, doctor,
// visit and prescription loaded
func (r *AppointmentRepository) ListAppointments(filter models.AppointmentFilter) ([]models.Appointment, error) {
	var appointments []models.Appointment
	query := r.db.Model(&models.Appointment{})
	if filter.HospitalID != nil {
		query = query.Where("hospital_id = ?", *filter.HospitalID)
	}
	if filter.DoctorID != nil {
		query = query.Where("doctor_id = ?", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("appointment_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("appointment_time < ?", *filter.To)
	}
	if filter.PatientSex != "" {
		patients := r.db.Model(&models.Patient{}).Select("id").Where("sex = ?", filter.PatientSex)
		query = query.Where("patient_id IN (?)", patients)
	}

	order := "appointment_time ASC"
	if filter.NewestFirst {
		order = "appointment_time DESC"
	}

	err := query.
		Preload("Patient").
		Preload("Doctor").
		Preload("Visit").
		Preload("Visit.Prescription").
		Preload("Visit.Prescription.LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order(order).
		Find(&appointments).Error
	return appointments, err
}
