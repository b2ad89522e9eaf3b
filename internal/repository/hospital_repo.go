package repository

import (
	"fmt"

	"hms-backend/internal/models"

	"gorm.io/gorm"
)

type HospitalRepository struct {
	db *gorm.DB
}

func NewHospitalRepo(db *gorm.DB) *HospitalRepository {
	return &HospitalRepository{db: db}
}

// GetAllHospitals retrieves all hospitals ordered by name
func (r *HospitalRepository) GetAllHospitals() ([]models.Hospital, error) {
	var hospitals []models.Hospital
	err := r.db.Order("name ASC").Find(&hospitals).Error
	return hospitals, err
}

// GetHospitalByID retrieves a hospital by ID
func (r *HospitalRepository) GetHospitalByID(id uint) (*models.Hospital, error) {
	var hospital models.Hospital
	if err := r.db.First(&hospital, id).Error; err != nil {
		return nil, translate(err, "hospital")
	}
	return &hospital, nil
}

// GetHospitalByName retrieves a hospital by its unique name
func (r *HospitalRepository) GetHospitalByName(name string) (*models.Hospital, error) {
	var hospital models.Hospital
	if err := r.db.Where("name = ?", name).First(&hospital).Error; err != nil {
		return nil, translate(err, "hospital")
	}
	return &hospital, nil
}

// CreateHospitalWithAdmin creates a hospital and its first administrator in one transaction
func (r *HospitalRepository) CreateHospitalWithAdmin(hospital *models.Hospital, admin *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hospital).Error; err != nil {
			return translate(err, "hospital")
		}
		admin.HospitalID = &hospital.ID
		if err := tx.Create(admin).Error; err != nil {
			return translate(err, "user")
		}
		return nil
	})
}

// DeleteHospitalCascade removes a hospital and every record scoped to it.
// Children are deleted before parents so no orphan survives a partial failure.
func (r *HospitalRepository) DeleteHospitalCascade(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		prescriptionIDs := tx.Model(&models.Prescription{}).Select("id").Where("hospital_id = ?", id)
		appointmentIDs := tx.Model(&models.Appointment{}).Select("id").Where("hospital_id = ?", id)
		visitIDs := tx.Model(&models.Visit{}).Select("id").Where("appointment_id IN (?)", appointmentIDs)

		steps := []struct {
			name string
			run  func() error
		}{
			{"line items", func() error {
				return tx.Where("prescription_id IN (?)", prescriptionIDs).Delete(&models.LineItem{}).Error
			}},
			{"clinical notes", func() error {
				return tx.Where("visit_id IN (?)", visitIDs).Delete(&models.ClinicalNote{}).Error
			}},
			{"prescriptions", func() error {
				return tx.Where("hospital_id = ?", id).Delete(&models.Prescription{}).Error
			}},
			{"visits", func() error {
				return tx.Where("appointment_id IN (?)", appointmentIDs).Delete(&models.Visit{}).Error
			}},
			{"appointments", func() error {
				return tx.Where("hospital_id = ?", id).Delete(&models.Appointment{}).Error
			}},
			{"patients", func() error {
				return tx.Where("hospital_id = ?", id).Delete(&models.Patient{}).Error
			}},
			{"users", func() error {
				return tx.Where("hospital_id = ?", id).Delete(&models.User{}).Error
			}},
			{"hospital", func() error {
				return tx.Delete(&models.Hospital{}, id).Error
			}},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.name, err)
			}
		}
		return nil
	})
}
