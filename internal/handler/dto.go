package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/service"
)

// Wire payloads use snake_case and are converted to service inputs here, once.

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts RFC3339, HTML datetime-local and plain dates
func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.Validation("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", field)
}

func parseOptionalTime(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseTime(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateHospitalRequest struct {
	Name          string `json:"name" binding:"required"`
	Address       string `json:"address"`
	AdminEmail    string `json:"admin_email" binding:"required,email"`
	AdminFullName string `json:"admin_full_name" binding:"required"`
	AdminPassword string `json:"admin_password" binding:"required,min=6"`
}

func (r CreateHospitalRequest) toInput() service.CreateHospitalInput {
	return service.CreateHospitalInput{
		Name:          r.Name,
		Address:       r.Address,
		AdminEmail:    r.AdminEmail,
		AdminFullName: r.AdminFullName,
		AdminPassword: r.AdminPassword,
	}
}

type CreateUserRequest struct {
	Email      string `json:"email" binding:"required,email"`
	FullName   string `json:"full_name" binding:"required"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required"`
	Speciality string `json:"speciality"`
}

func (r CreateUserRequest) toInput() service.CreateUserInput {
	return service.CreateUserInput{
		Email:      r.Email,
		FullName:   r.FullName,
		Password:   r.Password,
		Role:       models.Role(r.Role),
		Speciality: r.Speciality,
	}
}

type UpdateUserRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type CreatePatientRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	DateOfBirth string `json:"date_of_birth"`
	Sex         string `json:"sex"`
	Height      string `json:"height"`
	Weight      string `json:"weight"`
}

func (r CreatePatientRequest) toInput() (service.RegisterPatientInput, error) {
	dob, err := parseOptionalTime("date_of_birth", r.DateOfBirth)
	if err != nil {
		return service.RegisterPatientInput{}, err
	}
	return service.RegisterPatientInput{
		FullName:    r.FullName,
		PhoneNumber: r.PhoneNumber,
		DateOfBirth: dob,
		Sex:         models.Sex(r.Sex),
		Height:      r.Height,
		Weight:      r.Weight,
	}, nil
}

type CreateAppointmentRequest struct {
	PatientID       uint   `json:"patient_id" binding:"required"`
	DoctorID        uint   `json:"doctor_id" binding:"required"`
	AppointmentTime string `json:"appointment_time" binding:"required"`
	VisitPurpose    string `json:"visit_purpose"`
}

func (r CreateAppointmentRequest) toInput() (service.CreateAppointmentInput, error) {
	at, err := parseTime("appointment_time", r.AppointmentTime)
	if err != nil {
		return service.CreateAppointmentInput{}, err
	}
	return service.CreateAppointmentInput{
		PatientID:       r.PatientID,
		DoctorID:        r.DoctorID,
		AppointmentTime: at,
		VisitPurpose:    r.VisitPurpose,
	}, nil
}

type LineItemRequest struct {
	MedicineName string `json:"medicine_name"`
	Dose         string `json:"dose"`
	Frequency    string `json:"frequency"`
	DurationDays int    `json:"duration_days"`
	Instructions string `json:"instructions"`
	Status       string `json:"status"`
}

func toLineItemInputs(items []LineItemRequest) []service.LineItemInput {
	out := make([]service.LineItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, service.LineItemInput{
			MedicineName: item.MedicineName,
			Dose:         item.Dose,
			Frequency:    item.Frequency,
			DurationDays: item.DurationDays,
			Instructions: item.Instructions,
			Status:       models.LineItemStatus(item.Status),
		})
	}
	return out
}

// VisitDetailsRequest keeps next_visit_date raw: absent leaves the date alone,
// null or "" clears it
type VisitDetailsRequest struct {
	Subjective    *string         `json:"subjective"`
	Objective     *string         `json:"objective"`
	Assessment    *string         `json:"assessment"`
	Plan          *string         `json:"plan"`
	NextVisitDate json.RawMessage `json:"next_visit_date"`
	PrivateNote   string          `json:"private_note"`
}

type PrescriptionDetailsRequest struct {
	Type              string            `json:"type"`
	PrescriptionImage string            `json:"prescription_image"`
	LineItems         []LineItemRequest `json:"line_items"`
}

type CompleteVisitRequest struct {
	VisitDetails        *VisitDetailsRequest        `json:"visit_details"`
	PrescriptionDetails *PrescriptionDetailsRequest `json:"prescription_details"`
}

func parseNextVisitDate(raw json.RawMessage) (service.OptionalDate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return service.OptionalDate{}, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return service.OptionalDate{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return service.OptionalDate{}, apperror.Validation("next_visit_date must be a string or null")
	}
	t, err := parseOptionalTime("next_visit_date", s)
	if err != nil {
		return service.OptionalDate{}, err
	}
	return service.OptionalDate{Set: true, Value: t}, nil
}

func (r CompleteVisitRequest) toInput() (service.CompleteVisitInput, error) {
	var in service.CompleteVisitInput
	if v := r.VisitDetails; v != nil {
		next, err := parseNextVisitDate(v.NextVisitDate)
		if err != nil {
			return in, err
		}
		in.Visit = &service.VisitDetailsInput{
			Subjective:    v.Subjective,
			Objective:     v.Objective,
			Assessment:    v.Assessment,
			Plan:          v.Plan,
			NextVisitDate: next,
			PrivateNote:   v.PrivateNote,
		}
	}
	if p := r.PrescriptionDetails; p != nil {
		in.Prescription = &service.PrescriptionInput{
			Type:      models.PrescriptionType(p.Type),
			Image:     p.PrescriptionImage,
			LineItems: toLineItemInputs(p.LineItems),
		}
	}
	return in, nil
}

type LineItemUpdateRequest struct {
	LineItemID       uint   `json:"line_item_id"`
	Status           string `json:"status"`
	SubstitutionInfo string `json:"substitution_info"`
}

type DispenseRequest struct {
	Status    string                  `json:"status"`
	LineItems []LineItemRequest       `json:"line_items"`
	Updates   []LineItemUpdateRequest `json:"updates"`
}

func (r DispenseRequest) toInput() service.DispenseInput {
	in := service.DispenseInput{Status: r.Status}
	if len(r.LineItems) > 0 {
		in.LineItems = toLineItemInputs(r.LineItems)
	}
	if r.Updates != nil {
		in.Updates = make([]service.LineItemUpdate, 0, len(r.Updates))
		for _, u := range r.Updates {
			in.Updates = append(in.Updates, service.LineItemUpdate{
				LineItemID:       u.LineItemID,
				Status:           models.LineItemStatus(u.Status),
				SubstitutionInfo: u.SubstitutionInfo,
			})
		}
	}
	return in
}

// CompleteVisitResponse is returned by PUT /appointments/:id/status/complete
type CompleteVisitResponse struct {
	Message             string               `json:"message"`
	VisitID             uint                 `json:"visit_id"`
	Appointment         *models.Appointment  `json:"appointment"`
	Prescription        *models.Prescription `json:"prescription,omitempty"`
	PrescriptionUpdated bool                 `json:"prescription_updated"`
}
