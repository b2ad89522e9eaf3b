package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func digital(items ...LineItemInput) *PrescriptionInput {
	return &PrescriptionInput{Type: models.PrescriptionDigital, LineItems: items}
}

func paracetamol() LineItemInput {
	return LineItemInput{MedicineName: "Paracetamol", Dose: "500mg", Frequency: "1-0-1", DurationDays: 3}
}

func TestEncounter_EndToEndScenarios(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()

	// A: register, book, start, complete with one digital item
	patient, err := f.patients.Register(f.nurse, RegisterPatientInput{FullName: "A. Kumar", PhoneNumber: "9876543210"})
	require.NoError(t, err)

	appointment, err := f.appointments.Create(f.nurse, CreateAppointmentInput{
		PatientID:       patient.ID,
		DoctorID:        f.doctor.UserID,
		AppointmentTime: f.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, appointment.Status)

	_, err = f.encounters.Start(f.doctor, appointment.ID)
	require.NoError(t, err)

	result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Prescription: digital(paracetamol()),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, result.Appointment.Status)
	require.NotNil(t, result.Prescription)
	assert.True(t, result.PrescriptionUpdated)
	assert.Equal(t, models.PrescriptionCreated, result.Prescription.Status)
	require.Len(t, result.Prescription.LineItems, 1)
	assert.Equal(t, models.LineNotGiven, result.Prescription.LineItems[0].Status)

	token := result.Prescription.PublicViewToken
	assert.NotEmpty(t, token)

	// B: pharmacy marks the single item Given
	prescription, err := f.prescriptions.Dispense(f.shop, result.Prescription.ID, DispenseInput{
		Updates: []LineItemUpdate{{LineItemID: result.Prescription.LineItems[0].ID, Status: models.LineGiven}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionFullyDispensed, prescription.Status)

	// C: a later edit by the doctor is dropped
	again, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Prescription: digital(LineItemInput{MedicineName: "Ibuprofen", Dose: "200mg"}),
	})
	require.NoError(t, err)
	assert.False(t, again.PrescriptionUpdated)

	stored, err := f.store.GetPrescriptionByID(result.Prescription.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionFullyDispensed, stored.Status)
	require.Len(t, stored.LineItems, 1)
	assert.Equal(t, "Paracetamol", stored.LineItems[0].MedicineName)
	assert.Equal(t, token, stored.PublicViewToken)

	// D: the public link shows only the patient-facing projection
	view, err := f.prescriptions.PublicView(token)
	require.NoError(t, err)
	assert.Equal(t, "A. Kumar", view.PatientName)
	assert.Equal(t, "Dr. meera rao", view.DoctorName)
	assert.Equal(t, "City Care", view.HospitalName)
	require.Len(t, view.LineItems, 1)
	assert.Equal(t, "Paracetamol", view.LineItems[0].MedicineName)
	assert.Equal(t, models.LineGiven, view.LineItems[0].Status)

	f.sms.AssertNumberOfCalls(t, "Send", 1)
}

func TestEncounter_CreateNotifiesDoctorAndPharmacy(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()

	appointment := f.schedule(t, f.doctor)
	events := f.sink.byEvent(notification.EventNewAppointment)
	require.Len(t, events, 1)
	assert.Equal(t, notification.UserRoom(f.doctor.UserID), events[0].Room)
	assert.Equal(t, appointment.ID, events[0].Payload["appointment_id"])
	assert.Equal(t, "Ravi Kumar", events[0].Payload["patient_name"])

	_, err := f.encounters.Start(f.doctor, appointment.ID)
	require.NoError(t, err)
	result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{Prescription: digital(paracetamol())})
	require.NoError(t, err)

	events = f.sink.byEvent(notification.EventNewPrescription)
	require.Len(t, events, 1)
	assert.Equal(t, notification.TopicPharmacyQueue, events[0].Room)
	assert.Equal(t, result.Prescription.ID, events[0].Payload["prescription_id"])

	f.sms.AssertCalled(t, "Send", mock.Anything, "9876543210",
		"Your e-prescription from City Care is ready. View it here: https://hms.example.com/view-prescription/"+result.Prescription.PublicViewToken)
}

func TestEncounter_StartRules(t *testing.T) {
	f := newFixture(t)

	t.Run("only the assigned doctor", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Start(f.doctor2, appointment.ID)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("nurses cannot start", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Start(f.nurse, appointment.ID)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Start(f.doctorB, appointment.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("second start conflicts regardless of caller", func(t *testing.T) {
		appointment := f.startedVisit(t)
		require.NotNil(t, appointment.VisitID)
		assert.Equal(t, models.AppointmentInConsultation, appointment.Status)

		_, err := f.encounters.Start(f.doctor, appointment.ID)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		_, err = f.encounters.Start(f.doctor2, appointment.ID)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

		stored, err := f.store.GetAppointmentByID(appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, *appointment.VisitID, *stored.VisitID)
	})

	t.Run("cancelled appointment cannot start", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Cancel(f.nurse, appointment.ID)
		require.NoError(t, err)
		_, err = f.encounters.Start(f.doctor, appointment.ID)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	})
}

func TestEncounter_CompleteRules(t *testing.T) {
	f := newFixture(t)

	t.Run("without start", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Contains(t, apperror.PublicMessage(err), "not properly started")
	})

	t.Run("other doctor", func(t *testing.T) {
		appointment := f.startedVisit(t)
		_, err := f.encounters.Complete(f.doctor2, appointment.ID, CompleteVisitInput{})
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("handwritten requires an image", func(t *testing.T) {
		appointment := f.startedVisit(t)
		_, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
			Prescription: &PrescriptionInput{Type: models.PrescriptionHandwritten},
		})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

		stored, err := f.store.GetAppointmentByID(appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppointmentInConsultation, stored.Status)
	})

	t.Run("unknown prescription type", func(t *testing.T) {
		appointment := f.startedVisit(t)
		_, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
			Prescription: &PrescriptionInput{Type: "typed"},
		})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("line item without a name", func(t *testing.T) {
		appointment := f.startedVisit(t)
		_, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
			Prescription: digital(LineItemInput{Dose: "5ml"}),
		})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("without prescription", func(t *testing.T) {
		appointment := f.startedVisit(t)
		result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{})
		require.NoError(t, err)
		assert.Nil(t, result.Prescription)
		assert.False(t, result.PrescriptionUpdated)
		assert.Equal(t, models.AppointmentCompleted, result.Appointment.Status)
	})
}

func TestEncounter_HandwrittenPrescription(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()
	appointment := f.startedVisit(t)

	result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Prescription: &PrescriptionInput{
			Type:      models.PrescriptionHandwritten,
			Image:     "data:image/png;base64,iVBORw0KGgo=",
			LineItems: []LineItemInput{paracetamol()},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionHandwritten, result.Prescription.PrescriptionType)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", result.Prescription.PrescriptionImage)
	assert.Empty(t, result.Prescription.LineItems)
}

func TestEncounter_EditWhileCreatedKeepsToken(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()
	appointment := f.startedVisit(t)

	first, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{Prescription: digital(paracetamol())})
	require.NoError(t, err)

	second, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Prescription: digital(
			LineItemInput{MedicineName: "Amoxicillin", Dose: "250mg", DurationDays: 5},
			LineItemInput{MedicineName: "Cetirizine", Dose: "10mg", DurationDays: 3},
		),
	})
	require.NoError(t, err)
	assert.True(t, second.PrescriptionUpdated)
	assert.Equal(t, first.Prescription.ID, second.Prescription.ID)
	assert.Equal(t, first.Prescription.PublicViewToken, second.Prescription.PublicViewToken)

	stored, err := f.store.GetPrescriptionByID(first.Prescription.ID)
	require.NoError(t, err)
	require.Len(t, stored.LineItems, 2)
	assert.Equal(t, "Amoxicillin", stored.LineItems[0].MedicineName)

	// only the first write announces the prescription
	assert.Len(t, f.sink.byEvent(notification.EventNewPrescription), 1)
	f.sms.AssertNumberOfCalls(t, "Send", 1)
}

func TestEncounter_PartiallyDispensedIsNotEditable(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()
	appointment := f.startedVisit(t)

	result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Prescription: digital(paracetamol(), LineItemInput{MedicineName: "ORS"}),
	})
	require.NoError(t, err)

	_, err = f.prescriptions.Dispense(f.shop, result.Prescription.ID, DispenseInput{
		Updates: []LineItemUpdate{{LineItemID: result.Prescription.LineItems[0].ID, Status: models.LineGiven}},
	})
	require.NoError(t, err)

	again, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{Prescription: digital(paracetamol())})
	require.NoError(t, err)
	assert.False(t, again.PrescriptionUpdated)
	assert.Equal(t, models.PrescriptionPartiallyDispensed, again.Prescription.Status)
	assert.Len(t, again.Prescription.LineItems, 2)
}

func TestEncounter_VisitDetails(t *testing.T) {
	f := newFixture(t)
	appointment := f.startedVisit(t)
	next := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)

	result, err := f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Visit: &VisitDetailsInput{
			Subjective:    strPtr("Fever for 3 days"),
			Assessment:    strPtr("Viral fever"),
			NextVisitDate: OptionalDate{Set: true, Value: &next},
			PrivateNote:   "Check platelets next time",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fever for 3 days", result.Visit.Subjective)
	require.NotNil(t, result.Visit.NextVisitDate)
	require.Len(t, result.Visit.Notes, 1)

	f.now = f.now.Add(time.Hour)
	result, err = f.encounters.Complete(f.doctor, appointment.ID, CompleteVisitInput{
		Visit: &VisitDetailsInput{
			Plan:          strPtr("Rest and fluids"),
			NextVisitDate: OptionalDate{Set: true},
			PrivateNote:   "Platelets normal",
		},
	})
	require.NoError(t, err)

	visit, err := f.store.GetVisitByID(*appointment.VisitID)
	require.NoError(t, err)
	assert.Equal(t, "Fever for 3 days", visit.Subjective)
	assert.Equal(t, "Viral fever", visit.Assessment)
	assert.Equal(t, "Rest and fluids", visit.Plan)
	assert.Nil(t, visit.NextVisitDate)
	require.Len(t, visit.Notes, 1)
	assert.Equal(t, "Platelets normal", visit.Notes[0].Content)
	assert.Equal(t, f.doctor.UserID, visit.Notes[0].AuthorDoctorID)
	assert.Equal(t, f.now, visit.Notes[0].CreatedAt)
}

func TestEncounter_CancelAndNoShow(t *testing.T) {
	f := newFixture(t)

	t.Run("nurse cancels", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		updated, err := f.encounters.Cancel(f.nurse, appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppointmentCancelled, updated.Status)
	})

	t.Run("assigned doctor marks no-show", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		updated, err := f.encounters.MarkNoShow(f.doctor, appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppointmentNoShow, updated.Status)
	})

	t.Run("admin cancels and marks no-show", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		updated, err := f.encounters.Cancel(f.admin, appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppointmentCancelled, updated.Status)

		appointment = f.schedule(t, f.doctor)
		updated, err = f.encounters.MarkNoShow(f.admin, appointment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AppointmentNoShow, updated.Status)
	})

	t.Run("unassigned doctor is forbidden", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Cancel(f.doctor2, appointment.ID)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("pharmacy is forbidden", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.MarkNoShow(f.shop, appointment.ID)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("started appointment cannot be cancelled", func(t *testing.T) {
		appointment := f.startedVisit(t)
		_, err := f.encounters.Cancel(f.nurse, appointment.ID)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	})

	t.Run("other tenant", func(t *testing.T) {
		appointment := f.schedule(t, f.doctor)
		_, err := f.encounters.Cancel(f.nurseB, appointment.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})
}

func TestPrescriptionSMS(t *testing.T) {
	msg := PrescriptionSMS("City Care", "https://hms.example.com", "abc")
	assert.Equal(t, "Your e-prescription from City Care is ready. View it here: https://hms.example.com/view-prescription/abc", msg)
	assert.True(t, strings.Contains(PrescriptionSMS("", "http://x", "t"), "your recent visit"))
}

// flakyVisits fails the next failures visit writes before they reach the store
type flakyVisits struct {
	*memStore
	failures int
}

func (v *flakyVisits) fail() bool {
	if v.failures > 0 {
		v.failures--
		return true
	}
	return false
}

func (v *flakyVisits) SaveVisit(visit *models.Visit) error {
	if v.fail() {
		return errors.New("connection reset")
	}
	return v.memStore.SaveVisit(visit)
}

func (v *flakyVisits) SaveVisitWithPrescription(visit *models.Visit, prescription *models.Prescription) error {
	if v.fail() {
		return errors.New("connection reset")
	}
	return v.memStore.SaveVisitWithPrescription(visit, prescription)
}

func TestEncounter_CompleteFailedSaveLeavesNoPrescription(t *testing.T) {
	f := newFixture(t)
	f.expectSMS()
	s := f.store
	visits := &flakyVisits{memStore: s, failures: 1}
	encounters := NewEncounterService(s, visits, s, s, s, f.sink, f.sms, NopRecorder{}, "https://hms.example.com/", zap.NewNop())
	encounters.now = func() time.Time { return f.now }
	encounters.async = func(fn func()) { fn() }

	appointment := f.startedVisit(t)
	in := CompleteVisitInput{Prescription: digital(paracetamol())}

	_, err := encounters.Complete(f.doctor, appointment.ID, in)
	require.Error(t, err)
	assert.Zero(t, s.prescriptionCount())
	assert.Empty(t, f.sink.byEvent(notification.EventNewPrescription))
	f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	stored, err := s.GetAppointmentByID(appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentInConsultation, stored.Status)

	// the retry creates the prescription once and announces it once
	result, err := encounters.Complete(f.doctor, appointment.ID, in)
	require.NoError(t, err)
	require.NotNil(t, result.Prescription)
	assert.True(t, result.PrescriptionUpdated)
	assert.Equal(t, 1, s.prescriptionCount())
	assert.Len(t, f.sink.byEvent(notification.EventNewPrescription), 1)
	f.sms.AssertNumberOfCalls(t, "Send", 1)

	visit, err := s.GetVisitByID(*appointment.VisitID)
	require.NoError(t, err)
	require.NotNil(t, visit.PrescriptionID)
	assert.Equal(t, result.Prescription.ID, *visit.PrescriptionID)
}
