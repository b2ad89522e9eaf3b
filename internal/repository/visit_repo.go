package repository

import (
	"hms-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VisitRepository struct {
	db *gorm.DB
}

func NewVisitRepo(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// GetVisitByID retrieves a visit with its notes
func (r *VisitRepository) GetVisitByID(id uint) (*models.Visit, error) {
	var visit models.Visit
	err := r.db.Preload("Notes", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&visit, id).Error
	if err != nil {
		return nil, translate(err, "visit")
	}
	return &visit, nil
}

// SaveVisit persists the visit columns and upserts its notes
func (r *VisitRepository) SaveVisit(visit *models.Visit) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return saveVisit(tx, visit)
	})
}

// SaveVisitWithPrescription creates the visit's first prescription with its
// line items and links it in the same transaction as the visit update
func (r *VisitRepository) SaveVisitWithPrescription(visit *models.Visit, prescription *models.Prescription) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		prescription.VisitID = visit.ID
		if err := tx.Omit("Patient", "Doctor", "Hospital").Create(prescription).Error; err != nil {
			return translate(err, "prescription")
		}
		visit.PrescriptionID = &prescription.ID
		return saveVisit(tx, visit)
	})
	if err != nil {
		visit.PrescriptionID = nil
	}
	return err
}

func saveVisit(tx *gorm.DB, visit *models.Visit) error {
	if err := tx.Omit(clause.Associations).Save(visit).Error; err != nil {
		return err
	}
	for i := range visit.Notes {
		note := &visit.Notes[i]
		note.VisitID = visit.ID
		if err := tx.Save(note).Error; err != nil {
			return err
		}
	}
	return nil
}
