package service

import (
	"fmt"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"
)

type PrescriptionService struct {
	prescriptions PrescriptionStore
	audit         AuditStore
	notify        notifier
	metrics       Recorder
	now           func() time.Time
}

func NewPrescriptionService(prescriptions PrescriptionStore, audit AuditStore, sink notification.Sink, metrics Recorder) *PrescriptionService {
	return &PrescriptionService{
		prescriptions: prescriptions,
		audit:         audit,
		notify:        notifier{sink: sink, metrics: metrics},
		metrics:       metrics,
		now:           time.Now,
	}
}

// LineItemUpdate changes the dispense status of one existing line item
type LineItemUpdate struct {
	LineItemID       uint
	Status           models.LineItemStatus
	SubstitutionInfo string
}

// DispenseInput selects one of three actions, checked in this order:
// a non-empty LineItems list replaces the items (digitization), a non-nil
// Updates list changes individual items, and Status overrides the aggregate.
type DispenseInput struct {
	LineItems []LineItemInput
	Updates   []LineItemUpdate
	Status    string
}

// PublicPrescription is the patient-facing projection of a prescription
type PublicPrescription struct {
	PatientName       string                    `json:"patient_name"`
	DoctorName        string                    `json:"doctor_name"`
	HospitalName      string                    `json:"hospital_name"`
	Status            models.PrescriptionStatus `json:"status"`
	CreatedAt         time.Time                 `json:"created_at"`
	PrescriptionType  models.PrescriptionType   `json:"prescription_type"`
	PrescriptionImage string                    `json:"prescription_image,omitempty"`
	LineItems         []PublicLineItem          `json:"line_items"`
}

type PublicLineItem struct {
	MedicineName string                `json:"medicine_name"`
	Dose         string                `json:"dose,omitempty"`
	Frequency    string                `json:"frequency,omitempty"`
	DurationDays int                   `json:"duration_days,omitempty"`
	Instructions string                `json:"instructions,omitempty"`
	Status       models.LineItemStatus `json:"status"`
}

// Queue lists the prescriptions of the caller's hospital still waiting for the pharmacy
func (s *PrescriptionService) Queue(actor access.Actor) ([]models.Prescription, error) {
	if err := access.Authorize(actor, access.OpPrescriptionQueue); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}
	return s.prescriptions.GetPharmacyQueue(hospitalID)
}

// Stats returns the pharmacy dashboard counters. Completed-today counts from
// local midnight.
func (s *PrescriptionService) Stats(actor access.Actor) (*models.PrescriptionCounts, error) {
	if err := access.Authorize(actor, access.OpPrescriptionStats); err != nil {
		return nil, err
	}
	hospitalID, err := access.TenantID(actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var counts models.PrescriptionCounts
	if counts.NewPrescriptions, err = s.prescriptions.CountPrescriptions(hospitalID, models.PrescriptionCreated, nil); err != nil {
		return nil, err
	}
	if counts.InProgress, err = s.prescriptions.CountPrescriptions(hospitalID, models.PrescriptionPartiallyDispensed, nil); err != nil {
		return nil, err
	}
	if counts.CompletedToday, err = s.prescriptions.CountPrescriptions(hospitalID, models.PrescriptionFullyDispensed, &midnight); err != nil {
		return nil, err
	}
	counts.TotalPending = counts.NewPrescriptions + counts.InProgress
	return &counts, nil
}

func (s *PrescriptionService) load(actor access.Actor, id uint) (*models.Prescription, error) {
	prescription, err := s.prescriptions.GetPrescriptionByID(id)
	if err != nil {
		return nil, err
	}
	if err := access.CheckTenant(actor, prescription.HospitalID, "prescription"); err != nil {
		return nil, err
	}
	return prescription, nil
}

// Get returns a prescription of the caller's hospital
func (s *PrescriptionService) Get(actor access.Actor, id uint) (*models.Prescription, error) {
	if err := access.Authorize(actor, access.OpPrescriptionView); err != nil {
		return nil, err
	}
	return s.load(actor, id)
}

// Dispense applies a pharmacy action and notifies the prescribing doctor
func (s *PrescriptionService) Dispense(actor access.Actor, id uint, in DispenseInput) (*models.Prescription, error) {
	if err := access.Authorize(actor, access.OpPrescriptionDispense); err != nil {
		return nil, err
	}
	prescription, err := s.load(actor, id)
	if err != nil {
		return nil, err
	}

	switch {
	case len(in.LineItems) > 0:
		items, err := buildLineItems(in.LineItems, models.LineGiven)
		if err != nil {
			return nil, err
		}
		prescription.LineItems = items
		prescription.Status = models.PrescriptionFullyDispensed
	case in.Updates != nil:
		if err := applyLineUpdates(prescription, in.Updates); err != nil {
			return nil, err
		}
		prescription.Status = models.AggregateStatus(prescription.LineItems)
	case in.Status != "":
		status := models.PrescriptionStatus(in.Status)
		if in.Status == "Dispensed" {
			status = models.PrescriptionFullyDispensed
		}
		if !status.Valid() {
			return nil, apperror.Validation("invalid prescription status %q", in.Status)
		}
		prescription.Status = status
	default:
		return nil, apperror.Validation("one of line_items, updates or status is required")
	}

	if err := s.prescriptions.SavePrescription(prescription); err != nil {
		return nil, fmt.Errorf("failed to save prescription: %w", err)
	}

	s.metrics.RecordTransition("prescription", string(prescription.Status))
	s.notify.user(prescription.DoctorID, notification.EventDispenseUpdate, map[string]any{
		"prescription_id": prescription.ID,
		"status":          prescription.Status,
	})
	_ = s.audit.CreateAuditLog(&actor.UserID, "prescription_dispense",
		fmt.Sprintf("Prescription %d is now %s", prescription.ID, prescription.Status))

	return prescription, nil
}

// applyLineUpdates changes matching items. Unknown ids are ignored.
func applyLineUpdates(prescription *models.Prescription, updates []LineItemUpdate) error {
	for _, update := range updates {
		if !update.Status.Valid() {
			return apperror.Validation("invalid line item status %q", update.Status)
		}
	}
	for _, update := range updates {
		for i := range prescription.LineItems {
			item := &prescription.LineItems[i]
			if item.ID == update.LineItemID {
				item.Status = update.Status
				item.SubstitutionInfo = update.SubstitutionInfo
			}
		}
	}
	return nil
}

// PublicView resolves a public view token. The token is the only credential.
func (s *PrescriptionService) PublicView(token string) (*PublicPrescription, error) {
	prescription, err := s.prescriptions.GetPrescriptionByToken(token)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NotFound("Prescription not found or link is invalid.")
		}
		return nil, err
	}

	view := &PublicPrescription{
		Status:            prescription.Status,
		CreatedAt:         prescription.CreatedAt,
		PrescriptionType:  prescription.PrescriptionType,
		PrescriptionImage: prescription.PrescriptionImage,
		LineItems:         make([]PublicLineItem, 0, len(prescription.LineItems)),
	}
	if prescription.Patient != nil {
		view.PatientName = prescription.Patient.FullName
	}
	if prescription.Doctor != nil {
		view.DoctorName = "Dr. " + prescription.Doctor.FullName
	}
	if prescription.Hospital != nil {
		view.HospitalName = prescription.Hospital.Name
	}
	for _, item := range prescription.LineItems {
		view.LineItems = append(view.LineItems, PublicLineItem{
			MedicineName: item.MedicineName,
			Dose:         item.Dose,
			Frequency:    item.Frequency,
			DurationDays: item.DurationDays,
			Instructions: item.Instructions,
			Status:       item.Status,
		})
	}
	return view, nil
}
