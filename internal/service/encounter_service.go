package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const smsTimeout = 30 * time.Second

// EncounterService drives the appointment state machine:
//
//	Scheduled --start--> In-Consultation --complete--> Completed
//	Scheduled --cancel--> Cancelled
//	Scheduled --no-show--> No-Show
//	Completed --complete--> Completed
type EncounterService struct {
	appointments  AppointmentStore
	visits        VisitStore
	prescriptions PrescriptionStore
	patients      PatientStore
	audit         AuditStore
	notify        notifier
	sms           notification.SMSSender
	metrics       Recorder
	frontendURL   string
	log           *zap.Logger

	now   func() time.Time
	async func(func())
}

func NewEncounterService(
	appointments AppointmentStore,
	visits VisitStore,
	prescriptions PrescriptionStore,
	patients PatientStore,
	audit AuditStore,
	sink notification.Sink,
	sms notification.SMSSender,
	metrics Recorder,
	frontendURL string,
	log *zap.Logger,
) *EncounterService {
	return &EncounterService{
		appointments:  appointments,
		visits:        visits,
		prescriptions: prescriptions,
		patients:      patients,
		audit:         audit,
		notify:        notifier{sink: sink, metrics: metrics},
		sms:           sms,
		metrics:       metrics,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		log:           log,
		now:           time.Now,
		async:         func(f func()) { go f() },
	}
}

// OptionalDate distinguishes an absent field from an explicit clear
type OptionalDate struct {
	Set   bool
	Value *time.Time
}

// VisitDetailsInput carries the SOAP note. Nil fields are left unchanged.
type VisitDetailsInput struct {
	Subjective    *string
	Objective     *string
	Assessment    *string
	Plan          *string
	NextVisitDate OptionalDate
	PrivateNote   string
}

// LineItemInput is one medicine as written by a doctor or a pharmacist
type LineItemInput struct {
	MedicineName string
	Dose         string
	Frequency    string
	DurationDays int
	Instructions string
	Status       models.LineItemStatus
}

// PrescriptionInput is the prescription part of a completed visit
type PrescriptionInput struct {
	Type      models.PrescriptionType
	Image     string
	LineItems []LineItemInput
}

type CompleteVisitInput struct {
	Visit        *VisitDetailsInput
	Prescription *PrescriptionInput
}

// CompleteVisitResult reports what complete wrote. PrescriptionUpdated is
// false when prescription details were sent for a prescription that is no
// longer editable.
type CompleteVisitResult struct {
	Appointment         *models.Appointment
	Visit               *models.Visit
	Prescription        *models.Prescription
	PrescriptionUpdated bool
}

func (s *EncounterService) loadAppointment(actor access.Actor, id uint) (*models.Appointment, error) {
	appointment, err := s.appointments.GetAppointmentByID(id)
	if err != nil {
		return nil, err
	}
	if err := access.CheckTenant(actor, appointment.HospitalID, "appointment"); err != nil {
		return nil, err
	}
	return appointment, nil
}

// Start opens the consultation: creates the visit and moves the appointment to
// In-Consultation. An appointment that already has a visit is a Conflict for
// every caller.
func (s *EncounterService) Start(actor access.Actor, appointmentID uint) (*models.Appointment, error) {
	if err := access.Authorize(actor, access.OpAppointmentStart); err != nil {
		return nil, err
	}
	appointment, err := s.loadAppointment(actor, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.HasVisit() {
		return nil, apperror.Conflict("Consultation has already been started.")
	}
	if appointment.DoctorID != actor.UserID {
		return nil, apperror.Forbidden("Not authorized for this appointment")
	}
	if appointment.Status != models.AppointmentScheduled {
		return nil, apperror.Conflict(fmt.Sprintf("cannot start a consultation for a %s appointment", appointment.Status))
	}

	visit := &models.Visit{}
	appointment.Status = models.AppointmentInConsultation
	if err := s.appointments.StartConsultation(appointment, visit); err != nil {
		return nil, err
	}
	appointment.Visit = visit

	s.metrics.RecordTransition("appointment", string(models.AppointmentInConsultation))
	_ = s.audit.CreateAuditLog(&actor.UserID, "appointment_start",
		fmt.Sprintf("Started consultation for appointment %d (visit %d)", appointment.ID, visit.ID))

	return appointment, nil
}

// Cancel moves a scheduled appointment to Cancelled
func (s *EncounterService) Cancel(actor access.Actor, appointmentID uint) (*models.Appointment, error) {
	return s.closeScheduled(actor, appointmentID, access.OpAppointmentCancel, models.AppointmentCancelled)
}

// MarkNoShow moves a scheduled appointment to No-Show
func (s *EncounterService) MarkNoShow(actor access.Actor, appointmentID uint) (*models.Appointment, error) {
	return s.closeScheduled(actor, appointmentID, access.OpAppointmentNoShow, models.AppointmentNoShow)
}

// closeScheduled is allowed to the assigned doctor and to nurses and admins
func (s *EncounterService) closeScheduled(actor access.Actor, appointmentID uint, op access.Operation, to models.AppointmentStatus) (*models.Appointment, error) {
	if err := access.Authorize(actor, op); err != nil {
		return nil, err
	}
	appointment, err := s.loadAppointment(actor, appointmentID)
	if err != nil {
		return nil, err
	}

	privileged := actor.Role == models.RoleNurse || actor.Role == models.RoleAdmin
	if !privileged && appointment.DoctorID != actor.UserID {
		return nil, apperror.Forbidden("Not authorized to modify this appointment")
	}
	if appointment.Status != models.AppointmentScheduled {
		return nil, apperror.Conflict(fmt.Sprintf("cannot mark a %s appointment as %s", appointment.Status, to))
	}

	appointment.Status = to
	if err := s.appointments.UpdateAppointment(appointment); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	s.metrics.RecordTransition("appointment", string(to))
	_ = s.audit.CreateAuditLog(&actor.UserID, "appointment_status",
		fmt.Sprintf("Appointment %d marked %s", appointment.ID, to))

	return appointment, nil
}

// Complete saves the visit record and prescription and closes the appointment.
// Calling it again on a Completed appointment amends the record.
func (s *EncounterService) Complete(actor access.Actor, appointmentID uint, in CompleteVisitInput) (*CompleteVisitResult, error) {
	if err := access.Authorize(actor, access.OpAppointmentComplete); err != nil {
		return nil, err
	}
	appointment, err := s.loadAppointment(actor, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.HasVisit() {
		return nil, apperror.Conflict("Consultation not found or was not properly started.")
	}
	if appointment.DoctorID != actor.UserID {
		return nil, apperror.Forbidden("Not authorized to complete this visit.")
	}
	if appointment.Status != models.AppointmentInConsultation && appointment.Status != models.AppointmentCompleted {
		return nil, apperror.Conflict(fmt.Sprintf("cannot complete a %s appointment", appointment.Status))
	}

	var draft *prescriptionDraft
	if in.Prescription != nil {
		if draft, err = newPrescriptionDraft(*in.Prescription); err != nil {
			return nil, err
		}
	}

	visit, err := s.visits.GetVisitByID(*appointment.VisitID)
	if err != nil {
		return nil, err
	}
	if in.Visit != nil {
		applyVisitDetails(visit, *in.Visit, actor.UserID, s.now().UTC())
	}

	result := &CompleteVisitResult{Appointment: appointment, Visit: visit}
	var created *models.Prescription
	if draft != nil {
		if created, err = s.writePrescription(actor, appointment, visit, draft, result); err != nil {
			return nil, err
		}
	} else if visit.PrescriptionID != nil {
		if result.Prescription, err = s.prescriptions.GetPrescriptionByID(*visit.PrescriptionID); err != nil {
			return nil, err
		}
	}

	if created != nil {
		err = s.visits.SaveVisitWithPrescription(visit, created)
	} else {
		err = s.visits.SaveVisit(visit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save visit: %w", err)
	}
	if created != nil {
		result.Prescription = created
		result.PrescriptionUpdated = true
		s.metrics.RecordTransition("prescription", string(models.PrescriptionCreated))
		s.announcePrescription(actor, appointment, created)
	}

	wasCompleted := appointment.Status == models.AppointmentCompleted
	appointment.Status = models.AppointmentCompleted
	if err := s.appointments.UpdateAppointment(appointment); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	appointment.Visit = visit

	if !wasCompleted {
		s.metrics.RecordTransition("appointment", string(models.AppointmentCompleted))
	}
	_ = s.audit.CreateAuditLog(&actor.UserID, "visit_complete",
		fmt.Sprintf("Saved visit %d for appointment %d", visit.ID, appointment.ID))

	return result, nil
}

func applyVisitDetails(visit *models.Visit, in VisitDetailsInput, authorID uint, at time.Time) {
	if in.Subjective != nil {
		visit.Subjective = *in.Subjective
	}
	if in.Objective != nil {
		visit.Objective = *in.Objective
	}
	if in.Assessment != nil {
		visit.Assessment = *in.Assessment
	}
	if in.Plan != nil {
		visit.Plan = *in.Plan
	}
	if in.NextVisitDate.Set {
		visit.NextVisitDate = in.NextVisitDate.Value
	}
	if note := strings.TrimSpace(in.PrivateNote); note != "" {
		visit.UpsertNote(authorID, note, at)
	}
}

// prescriptionDraft is a validated PrescriptionInput
type prescriptionDraft struct {
	kind  models.PrescriptionType
	image string
	items []models.LineItem
}

func newPrescriptionDraft(in PrescriptionInput) (*prescriptionDraft, error) {
	kind := in.Type
	if kind == "" {
		kind = models.PrescriptionDigital
	}
	if !kind.Valid() {
		return nil, apperror.Validation("prescription type must be digital or handwritten")
	}

	draft := &prescriptionDraft{kind: kind, items: []models.LineItem{}}
	if kind == models.PrescriptionHandwritten {
		if strings.TrimSpace(in.Image) == "" {
			return nil, apperror.Validation("prescription_image is required for a handwritten prescription")
		}
		draft.image = in.Image
		return draft, nil
	}

	items, err := buildLineItems(in.LineItems, models.LineNotGiven)
	if err != nil {
		return nil, err
	}
	draft.items = items
	return draft, nil
}

// buildLineItems validates items and fills a missing status with fallback
func buildLineItems(in []LineItemInput, fallback models.LineItemStatus) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(in))
	for i, item := range in {
		name := strings.TrimSpace(item.MedicineName)
		if name == "" {
			return nil, apperror.Validation("line item %d: medicine_name is required", i+1)
		}
		if item.DurationDays < 0 {
			return nil, apperror.Validation("line item %d: duration_days must not be negative", i+1)
		}
		status := item.Status
		if status == "" {
			status = fallback
		}
		if !status.Valid() {
			return nil, apperror.Validation("line item %d: invalid status %q", i+1, item.Status)
		}
		items = append(items, models.LineItem{
			MedicineName: name,
			Dose:         item.Dose,
			Frequency:    item.Frequency,
			DurationDays: item.DurationDays,
			Instructions: item.Instructions,
			Status:       status,
		})
	}
	return items, nil
}

// writePrescription replaces the contents of the visit's editable
// prescription, or returns a new unsaved one when the visit has none. Edits to
// a prescription the pharmacy has touched are dropped.
func (s *EncounterService) writePrescription(actor access.Actor, appointment *models.Appointment, visit *models.Visit, draft *prescriptionDraft, result *CompleteVisitResult) (*models.Prescription, error) {
	if visit.PrescriptionID == nil {
		return &models.Prescription{
			HospitalID:        appointment.HospitalID,
			VisitID:           visit.ID,
			PatientID:         appointment.PatientID,
			DoctorID:          actor.UserID,
			Status:            models.PrescriptionCreated,
			PublicViewToken:   uuid.New().String(),
			PrescriptionType:  draft.kind,
			PrescriptionImage: draft.image,
			LineItems:         draft.items,
		}, nil
	}

	prescription, err := s.prescriptions.GetPrescriptionByID(*visit.PrescriptionID)
	if err != nil {
		return nil, err
	}
	result.Prescription = prescription
	if !prescription.IsEditable() {
		s.log.Info("Dropping edit of a prescription already handled by the pharmacy",
			zap.Uint("prescription_id", prescription.ID),
			zap.String("status", string(prescription.Status)),
		)
		return nil, nil
	}

	prescription.PrescriptionType = draft.kind
	prescription.PrescriptionImage = draft.image
	prescription.LineItems = draft.items
	if err := s.prescriptions.SavePrescription(prescription); err != nil {
		return nil, fmt.Errorf("failed to update prescription: %w", err)
	}
	result.PrescriptionUpdated = true
	return nil, nil
}

// announcePrescription tells the pharmacy queue and texts the patient a link
// to the public view
func (s *EncounterService) announcePrescription(actor access.Actor, appointment *models.Appointment, prescription *models.Prescription) {
	patient := appointment.Patient
	if patient == nil {
		p, err := s.patients.GetPatientByID(appointment.PatientID)
		if err != nil {
			s.log.Error("Failed to load patient for prescription notice",
				zap.Uint("patient_id", appointment.PatientID), zap.Error(err))
			return
		}
		patient = p
	}

	s.notify.topic(notification.TopicPharmacyQueue, notification.EventNewPrescription, map[string]any{
		"prescription_id": prescription.ID,
		"patient_name":    patient.FullName,
	})

	body := PrescriptionSMS(actor.HospitalName, s.frontendURL, prescription.PublicViewToken)
	phone := patient.PhoneNumber
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), smsTimeout)
		defer cancel()
		err := s.sms.Send(ctx, phone, body)
		s.metrics.RecordSMS(err == nil)
		if err != nil {
			s.log.Error("Failed to send prescription SMS",
				zap.Uint("prescription_id", prescription.ID),
				zap.Error(err),
			)
		}
	})
}

// PrescriptionSMS is the text sent to a patient when a prescription is issued
func PrescriptionSMS(hospitalName, frontendURL, token string) string {
	if hospitalName == "" {
		hospitalName = "your recent visit"
	}
	return fmt.Sprintf("Your e-prescription from %s is ready. View it here: %s/view-prescription/%s",
		hospitalName, frontendURL, token)
}
