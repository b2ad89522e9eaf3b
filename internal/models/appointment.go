package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled      AppointmentStatus = "Scheduled"
	AppointmentInConsultation AppointmentStatus = "In-Consultation"
	AppointmentCompleted      AppointmentStatus = "Completed"
	AppointmentNoShow         AppointmentStatus = "No-Show"
	AppointmentCancelled      AppointmentStatus = "Cancelled"
)

// Appointment represents the appointments table.
// VisitID is set once when the consultation starts and never cleared.
type Appointment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	HospitalID      uint              `gorm:"not null;index" json:"hospital_id"`
	PatientID       uint              `gorm:"not null;index" json:"patient_id"`
	DoctorID        uint              `gorm:"not null;index" json:"doctor_id"`
	CreatedByID     uint              `gorm:"not null" json:"created_by_id"`
	AppointmentTime time.Time         `gorm:"not null;index" json:"appointment_time"`
	Status          AppointmentStatus `gorm:"size:32;not null;index" json:"status"`
	VisitPurpose    string            `gorm:"type:text" json:"visit_purpose,omitempty"`
	VisitID         *uint             `json:"visit_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	// Relationships
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User    `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Visit   *Visit   `gorm:"foreignKey:VisitID" json:"visit,omitempty"`
}

// TableName specifies the table name for Appointment model
func (Appointment) TableName() string {
	return "appointments"
}

// HasVisit reports whether the consultation has been started
func (a *Appointment) HasVisit() bool {
	return a.VisitID != nil
}

// AppointmentFilter narrows ListAppointments queries
type AppointmentFilter struct {
	HospitalID  *uint
	DoctorID    *uint
	PatientID   *uint
	From        *time.Time
	To          *time.Time
	PatientSex  Sex
	Status      AppointmentStatus
	NewestFirst bool
}
