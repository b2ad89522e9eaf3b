package models

import "time"

// Sex of a patient as recorded at registration
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

// Patient represents the patients table.
// (full_name, phone_number, hospital_id) identifies a patient within a tenant.
type Patient struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	HospitalID  uint       `gorm:"not null;uniqueIndex:idx_patient_identity,priority:3" json:"hospital_id"`
	FullName    string     `gorm:"size:255;not null;uniqueIndex:idx_patient_identity,priority:1" json:"full_name"`
	PhoneNumber string     `gorm:"size:32;not null;index;uniqueIndex:idx_patient_identity,priority:2" json:"phone_number"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Sex         Sex        `gorm:"size:16" json:"sex,omitempty"`
	Height      string     `gorm:"size:32" json:"height,omitempty"`
	Weight      string     `gorm:"size:32" json:"weight,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Hospital *Hospital `gorm:"foreignKey:HospitalID" json:"hospital,omitempty"`
}

// TableName specifies the table name for Patient model
func (Patient) TableName() string {
	return "patients"
}

// AgeAt returns the patient's age in whole years at t, or -1 when the date of
// birth is unknown.
func (p *Patient) AgeAt(t time.Time) int {
	if p.DateOfBirth == nil {
		return -1
	}
	dob := *p.DateOfBirth
	age := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	return age
}

// PatientFilter narrows ListPatients queries
type PatientFilter struct {
	HospitalID uint
	Search     string
	// AppointmentFrom/To restrict results to patients with an appointment in the window
	AppointmentFrom *time.Time
	AppointmentTo   *time.Time
}
