package repository

import (
	"time"

	"hms-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepo(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// GetPrescriptionByID retrieves a prescription with items, patient and doctor
func (r *PrescriptionRepository) GetPrescriptionByID(id uint) (*models.Prescription, error) {
	var prescription models.Prescription
	err := r.db.
		Preload("LineItems", orderedItems).
		Preload("Patient").
		Preload("Doctor").
		First(&prescription, id).Error
	if err != nil {
		return nil, translate(err, "prescription")
	}
	return &prescription, nil
}

// GetPrescriptionByToken retrieves a prescription by its public view token
func (r *PrescriptionRepository) GetPrescriptionByToken(token string) (*models.Prescription, error) {
	var prescription models.Prescription
	err := r.db.
		Preload("LineItems", orderedItems).
		Preload("Patient").
		Preload("Doctor").
		Preload("Hospital").
		Where("public_view_token = ?", token).
		First(&prescription).Error
	if err != nil {
		return nil, translate(err, "prescription")
	}
	return &prescription, nil
}

// SavePrescription persists the prescription and makes its stored line items
// match LineItems exactly: missing items are deleted, new ones created.
func (r *PrescriptionRepository) SavePrescription(prescription *models.Prescription) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(prescription).Error; err != nil {
			return err
		}

		keep := make([]uint, 0, len(prescription.LineItems))
		for _, item := range prescription.LineItems {
			if item.ID != 0 {
				keep = append(keep, item.ID)
			}
		}
		stale := tx.Where("prescription_id = ?", prescription.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&models.LineItem{}).Error; err != nil {
			return err
		}

		for i := range prescription.LineItems {
			item := &prescription.LineItems[i]
			item.PrescriptionID = prescription.ID
			if err := tx.Save(item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPharmacyQueue returns the hospital's undispensed prescriptions, newest first
func (r *PrescriptionRepository) GetPharmacyQueue(hospitalID uint) ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	err := r.db.
		Preload("Patient").
		Preload("LineItems", orderedItems).
		Where("hospital_id = ? AND status IN ?", hospitalID, []models.PrescriptionStatus{
			models.PrescriptionCreated,
			models.PrescriptionPartiallyDispensed,
		}).
		Order("created_at DESC").
		Find(&prescriptions).Error
	return prescriptions, err
}

// CountPrescriptions counts a hospital's prescriptions in status, optionally
// only those updated at or after since
func (r *PrescriptionRepository) CountPrescriptions(hospitalID uint, status models.PrescriptionStatus, since *time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&models.Prescription{}).Where("hospital_id = ? AND status = ?", hospitalID, status)
	if since != nil {
		query = query.Where("updated_at >= ?", *since)
	}
	err := query.Count(&count).Error
	return count, err
}
