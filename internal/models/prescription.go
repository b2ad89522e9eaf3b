package models

import "time"

// PrescriptionStatus is the aggregate dispensing state of a prescription
type PrescriptionStatus string

const (
	PrescriptionCreated            PrescriptionStatus = "Created"
	PrescriptionPartiallyDispensed PrescriptionStatus = "Partially Dispensed"
	PrescriptionFullyDispensed     PrescriptionStatus = "Fully Dispensed"
	PrescriptionNotAvailable       PrescriptionStatus = "Not Available"
)

func (s PrescriptionStatus) Valid() bool {
	switch s {
	case PrescriptionCreated, PrescriptionPartiallyDispensed, PrescriptionFullyDispensed, PrescriptionNotAvailable:
		return true
	}
	return false
}

// LineItemStatus is the dispensing state of a single medicine
type LineItemStatus string

const (
	LineGiven          LineItemStatus = "Given"
	LinePartiallyGiven LineItemStatus = "Partially Given"
	LineNotGiven       LineItemStatus = "Not Given"
	LineSubstituted    LineItemStatus = "Substituted"
)

func (s LineItemStatus) Valid() bool {
	switch s {
	case LineGiven, LinePartiallyGiven, LineNotGiven, LineSubstituted:
		return true
	}
	return false
}

// PrescriptionType tells whether items are structured or a handwritten image
type PrescriptionType string

const (
	PrescriptionDigital     PrescriptionType = "digital"
	PrescriptionHandwritten PrescriptionType = "handwritten"
)

func (t PrescriptionType) Valid() bool {
	return t == PrescriptionDigital || t == PrescriptionHandwritten
}

// Prescription represents the prescriptions table
type Prescription struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	HospitalID        uint               `gorm:"not null;index" json:"hospital_id"`
	VisitID           uint               `gorm:"not null;uniqueIndex" json:"visit_id"`
	PatientID         uint               `gorm:"not null;index" json:"patient_id"`
	DoctorID          uint               `gorm:"not null;index" json:"doctor_id"`
	Status            PrescriptionStatus `gorm:"size:32;not null;index" json:"status"`
	PublicViewToken   string             `gorm:"size:36;not null;uniqueIndex" json:"public_view_token"`
	PrescriptionType  PrescriptionType   `gorm:"size:16;not null" json:"prescription_type"`
	PrescriptionImage string             `json:"prescription_image,omitempty"`
	LineItems         []LineItem         `gorm:"foreignKey:PrescriptionID" json:"line_items"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`

	// Relationships
	Patient  *Patient  `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor   *User     `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Hospital *Hospital `gorm:"foreignKey:HospitalID" json:"hospital,omitempty"`
}

// TableName specifies the table name for Prescription model
func (Prescription) TableName() string {
	return "prescriptions"
}

// LineItem is one medicine on a prescription
type LineItem struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	PrescriptionID   uint           `gorm:"not null;index" json:"prescription_id"`
	MedicineName     string         `gorm:"size:255;not null" json:"medicine_name"`
	Dose             string         `gorm:"size:100" json:"dose,omitempty"`
	Frequency        string         `gorm:"size:100" json:"frequency,omitempty"`
	DurationDays     int            `json:"duration_days,omitempty"`
	Instructions     string         `gorm:"type:text" json:"instructions,omitempty"`
	Status           LineItemStatus `gorm:"size:32;not null" json:"status"`
	SubstitutionInfo string         `gorm:"type:text" json:"substitution_info,omitempty"`
}

// TableName specifies the table name for LineItem model
func (LineItem) TableName() string {
	return "prescription_line_items"
}

// IsEditable reports whether the prescribing doctor may still change the
// prescription: only while the pharmacy has not touched it.
func (p *Prescription) IsEditable() bool {
	return p.Status == PrescriptionCreated
}

// AggregateStatus derives the prescription status from its line statuses.
// Every item Given or Substituted means fully dispensed; any item other than
// Not Given means partially dispensed; otherwise nothing was dispensed.
func AggregateStatus(items []LineItem) PrescriptionStatus {
	if len(items) == 0 {
		return PrescriptionCreated
	}

	allGiven := true
	anyTouched := false
	for _, item := range items {
		if item.Status != LineGiven && item.Status != LineSubstituted {
			allGiven = false
		}
		if item.Status != LineNotGiven {
			anyTouched = true
		}
	}

	switch {
	case allGiven:
		return PrescriptionFullyDispensed
	case anyTouched:
		return PrescriptionPartiallyDispensed
	default:
		return PrescriptionCreated
	}
}

// PrescriptionCounts are the pharmacy dashboard counters
type PrescriptionCounts struct {
	NewPrescriptions int64 `json:"new_prescriptions"`
	InProgress       int64 `json:"in_progress"`
	CompletedToday   int64 `json:"completed_today"`
	TotalPending     int64 `json:"total_pending"`
}
