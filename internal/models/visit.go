package models

import "time"

// Visit holds the clinical record of a started consultation
type Visit struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	AppointmentID  uint           `gorm:"not null;uniqueIndex" json:"appointment_id"`
	Subjective     string         `gorm:"type:text" json:"subjective,omitempty"`
	Objective      string         `gorm:"type:text" json:"objective,omitempty"`
	Assessment     string         `gorm:"type:text" json:"assessment,omitempty"`
	Plan           string         `gorm:"type:text" json:"plan,omitempty"`
	NextVisitDate  *time.Time     `json:"next_visit_date"`
	Notes          []ClinicalNote `gorm:"foreignKey:VisitID" json:"notes,omitempty"`
	PrescriptionID *uint          `json:"prescription_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Relationships
	Prescription *Prescription `gorm:"foreignKey:PrescriptionID" json:"prescription,omitempty"`
}

// TableName specifies the table name for Visit model
func (Visit) TableName() string {
	return "visits"
}

// ClinicalNote is a private note left on a visit; one per authoring doctor
type ClinicalNote struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	VisitID        uint      `gorm:"not null;uniqueIndex:idx_visit_author" json:"visit_id"`
	AuthorDoctorID uint      `gorm:"not null;uniqueIndex:idx_visit_author" json:"author_doctor_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for ClinicalNote model
func (ClinicalNote) TableName() string {
	return "clinical_notes"
}

// UpsertNote replaces the author's existing note content and timestamp, or
// appends a new note when the author has none.
func (v *Visit) UpsertNote(authorID uint, content string, at time.Time) {
	for i := range v.Notes {
		if v.Notes[i].AuthorDoctorID == authorID {
			v.Notes[i].Content = content
			v.Notes[i].CreatedAt = at
			return
		}
	}
	v.Notes = append(v.Notes, ClinicalNote{
		VisitID:        v.ID,
		AuthorDoctorID: authorID,
		Content:        content,
		CreatedAt:      at,
	})
}
