package service

import (
	"fmt"
	"strings"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"
)

type AppointmentService struct {
	appointments AppointmentStore
	patients     PatientStore
	users        UserStore
	audit        AuditStore
	notify       notifier
}

func NewAppointmentService(
	appointments AppointmentStore,
	patients PatientStore,
	users UserStore,
	audit AuditStore,
	sink notification.Sink,
	metrics Recorder,
) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		patients:     patients,
		users:        users,
		audit:        audit,
		notify:       notifier{sink: sink, metrics: metrics},
	}
}

// CreateAppointmentInput schedules a patient with a doctor
type CreateAppointmentInput struct {
	PatientID       uint
	DoctorID        uint
	AppointmentTime time.Time
	VisitPurpose    string
}

// AppointmentQuery filters appointment listings
type AppointmentQuery struct {
	DoctorID   *uint
	PatientID  *uint
	Date       *time.Time
	PatientSex models.Sex
}

// Create schedules an appointment and notifies the doctor
func (s *AppointmentService) Create(actor access.Actor, in CreateAppointmentInput) (*models.Appointment, error) {
	if err := access.Authorize(actor, access.OpAppointmentCreate); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	if in.AppointmentTime.IsZero() {
		return nil, apperror.Validation("appointment_time is required")
	}

	patient, err := loadPatient(s.patients, actor, in.PatientID)
	if err != nil {
		return nil, err
	}
	if patient.HospitalID != hospitalID {
		return nil, apperror.NotFound("patient not found")
	}

	doctor, err := s.users.GetUserByID(in.DoctorID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NotFound("doctor not found")
		}
		return nil, err
	}
	if !doctor.BelongsTo(hospitalID) {
		return nil, apperror.NotFound("doctor not found")
	}
	if doctor.Role != models.RoleDoctor {
		return nil, apperror.Validation("user %d is not a doctor", doctor.ID)
	}
	if !doctor.IsActive {
		return nil, apperror.Validation("doctor %s is not active", doctor.FullName)
	}

	appointment := &models.Appointment{
		HospitalID:      hospitalID,
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		CreatedByID:     actor.UserID,
		AppointmentTime: in.AppointmentTime.UTC(),
		Status:          models.AppointmentScheduled,
		VisitPurpose:    strings.TrimSpace(in.VisitPurpose),
	}
	if err := s.appointments.CreateAppointment(appointment); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	appointment.Patient = patient
	appointment.Doctor = doctor

	s.notify.user(doctor.ID, notification.EventNewAppointment, map[string]any{
		"appointment_id": appointment.ID,
		"patient_name":   patient.FullName,
	})
	_ = s.audit.CreateAuditLog(&actor.UserID, "appointment_create",
		fmt.Sprintf("Scheduled appointment %d for patient %d with doctor %d", appointment.ID, patient.ID, doctor.ID))

	return appointment, nil
}

// List returns the hospital's appointments in time order. A doctor who does
// not ask for a specific doctor sees only their own.
func (s *AppointmentService) List(actor access.Actor, q AppointmentQuery) ([]models.Appointment, error) {
	if err := access.Authorize(actor, access.OpAppointmentList); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	filter := models.AppointmentFilter{
		HospitalID: &hospitalID,
		DoctorID:   q.DoctorID,
		PatientID:  q.PatientID,
	}
	if actor.Role == models.RoleDoctor && q.DoctorID == nil {
		filter.DoctorID = &actor.UserID
	}
	if q.Date != nil {
		from, to := dayBounds(*q.Date)
		filter.From, filter.To = &from, &to
	}
	return s.appointments.ListAppointments(filter)
}

// ListAll is the nurse desk view: every appointment of the hospital, newest first
func (s *AppointmentService) ListAll(actor access.Actor, q AppointmentQuery) ([]models.Appointment, error) {
	if err := access.Authorize(actor, access.OpAppointmentListAll); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	if q.PatientSex != "" && !q.PatientSex.Valid() {
		return nil, apperror.Validation("patient_gender must be one of Male, Female, Other")
	}

	filter := models.AppointmentFilter{
		HospitalID:  &hospitalID,
		DoctorID:    q.DoctorID,
		PatientSex:  q.PatientSex,
		NewestFirst: true,
	}
	if q.Date != nil {
		from, to := dayBounds(*q.Date)
		filter.From, filter.To = &from, &to
	}
	return s.appointments.ListAppointments(filter)
}

// notifier emits events to the sink and counts them
type notifier struct {
	sink    notification.Sink
	metrics Recorder
}

func (n notifier) user(userID uint, event string, payload any) {
	n.sink.NotifyUser(userID, event, payload)
	n.metrics.RecordNotification(event)
}

func (n notifier) topic(topic, event string, payload any) {
	n.sink.NotifyTopic(topic, event, payload)
	n.metrics.RecordNotification(event)
}
