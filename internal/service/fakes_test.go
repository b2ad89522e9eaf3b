package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/apperror"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"
	"hms-backend/pkg/utils"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory implementation of every store interface. Reads
// return copies so services cannot mutate stored rows without saving them.
type memStore struct {
	mu sync.Mutex

	nextID        uint
	hospitals     map[uint]models.Hospital
	users         map[uint]models.User
	patients      map[uint]models.Patient
	appointments  map[uint]models.Appointment
	visits        map[uint]models.Visit
	prescriptions map[uint]models.Prescription
	audits        []string
	now           func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		hospitals:     map[uint]models.Hospital{},
		users:         map[uint]models.User{},
		patients:      map[uint]models.Patient{},
		appointments:  map[uint]models.Appointment{},
		visits:        map[uint]models.Visit{},
		prescriptions: map[uint]models.Prescription{},
		now:           time.Now,
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

// hospitals

func (m *memStore) CreateHospitalWithAdmin(hospital *models.Hospital, admin *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hospital.ID = m.id()
	m.hospitals[hospital.ID] = *hospital
	admin.ID = m.id()
	admin.HospitalID = &hospital.ID
	m.users[admin.ID] = *admin
	return nil
}

func (m *memStore) GetAllHospitals() ([]models.Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Hospital{}
	for _, h := range m.hospitals {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetHospitalByID(id uint) (*models.Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperror.NotFound("hospital not found")
	}
	return &h, nil
}

func (m *memStore) GetHospitalByName(name string) (*models.Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hospitals {
		if h.Name == name {
			return &h, nil
		}
	}
	return nil, apperror.NotFound("hospital not found")
}

func (m *memStore) DeleteHospitalCascade(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid, p := range m.prescriptions {
		if p.HospitalID == id {
			delete(m.prescriptions, pid)
		}
	}
	for aid, a := range m.appointments {
		if a.HospitalID == id {
			if a.VisitID != nil {
				delete(m.visits, *a.VisitID)
			}
			delete(m.appointments, aid)
		}
	}
	for pid, p := range m.patients {
		if p.HospitalID == id {
			delete(m.patients, pid)
		}
	}
	for uid, u := range m.users {
		if u.BelongsTo(id) {
			delete(m.users, uid)
		}
	}
	delete(m.hospitals, id)
	return nil
}

// users

func (m *memStore) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user already exists")
		}
	}
	user.ID = m.id()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByID(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	if u.HospitalID != nil {
		if h, ok := m.hospitals[*u.HospitalID]; ok {
			u.Hospital = &h
		}
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user not found")
}

func (m *memStore) ListUsers(filter models.UserFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if !u.BelongsTo(filter.HospitalID) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) UpdateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	u.Hospital = nil
	m.users[user.ID] = u
	return nil
}

// patients

func (m *memStore) CreatePatient(patient *models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	patient.ID = m.id()
	m.patients[patient.ID] = *patient
	return nil
}

func (m *memStore) GetPatientByID(id uint) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient not found")
	}
	if h, ok := m.hospitals[p.HospitalID]; ok {
		p.Hospital = &h
	}
	return &p, nil
}

func (m *memStore) FindPatientByIdentity(hospitalID uint, fullName, phoneNumber string) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.HospitalID == hospitalID && p.FullName == fullName && p.PhoneNumber == phoneNumber {
			return &p, nil
		}
	}
	return nil, apperror.NotFound("patient not found")
}

func (m *memStore) SearchPatientsByPhone(hospitalID uint, digits string) ([]models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Patient{}
	for _, p := range m.patients {
		if p.HospitalID == hospitalID && strings.Contains(p.PhoneNumber, digits) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListPatients(filter models.PatientFilter) ([]models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []models.Patient{}
	for _, p := range m.patients {
		if p.HospitalID != filter.HospitalID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.FullName), search) && !strings.Contains(p.PhoneNumber, search) {
			continue
		}
		if filter.AppointmentFrom != nil && !m.hasAppointmentIn(p.ID, *filter.AppointmentFrom, *filter.AppointmentTo) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) hasAppointmentIn(patientID uint, from, to time.Time) bool {
	for _, a := range m.appointments {
		if a.PatientID == patientID && !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			return true
		}
	}
	return false
}

// appointments

func (m *memStore) CreateAppointment(appointment *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appointment.ID = m.id()
	a := *appointment
	a.Patient, a.Doctor, a.Visit = nil, nil, nil
	m.appointments[a.ID] = a
	return nil
}

func (m *memStore) loadAppointment(a models.Appointment) models.Appointment {
	if p, ok := m.patients[a.PatientID]; ok {
		a.Patient = &p
	}
	if d, ok := m.users[a.DoctorID]; ok {
		a.Doctor = &d
	}
	return a
}

func (m *memStore) GetAppointmentByID(id uint) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, apperror.NotFound("appointment not found")
	}
	a = m.loadAppointment(a)
	return &a, nil
}

func (m *memStore) UpdateAppointment(appointment *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *appointment
	a.Patient, a.Doctor, a.Visit = nil, nil, nil
	m.appointments[a.ID] = a
	return nil
}

func (m *memStore) StartConsultation(appointment *models.Appointment, visit *models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.AppointmentID == appointment.ID {
			return apperror.Conflict("visit already exists")
		}
	}
	visit.ID = m.id()
	visit.AppointmentID = appointment.ID
	m.visits[visit.ID] = *visit
	appointment.VisitID = &visit.ID
	a := *appointment
	a.Patient, a.Doctor, a.Visit = nil, nil, nil
	m.appointments[a.ID] = a
	return nil
}

func (m *memStore) ListAppointments(filter models.AppointmentFilter) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range m.appointments {
		switch {
		case filter.HospitalID != nil && a.HospitalID != *filter.HospitalID,
			filter.DoctorID != nil && a.DoctorID != *filter.DoctorID,
			filter.PatientID != nil && a.PatientID != *filter.PatientID,
			filter.From != nil && a.AppointmentTime.Before(*filter.From),
			filter.To != nil && !a.AppointmentTime.Before(*filter.To),
			filter.Status != "" && a.Status != filter.Status,
			filter.PatientSex != "" && m.patients[a.PatientID].Sex != filter.PatientSex:
			continue
		}
		a = m.loadAppointment(a)
		if a.VisitID != nil {
			v := m.copyVisit(m.visits[*a.VisitID])
			if v.PrescriptionID != nil {
				p := m.copyPrescription(m.prescriptions[*v.PrescriptionID])
				v.Prescription = &p
			}
			a.Visit = &v
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.NewestFirst {
			return out[i].AppointmentTime.After(out[j].AppointmentTime)
		}
		return out[i].AppointmentTime.Before(out[j].AppointmentTime)
	})
	return out, nil
}

// visits

func (m *memStore) copyVisit(v models.Visit) models.Visit {
	v.Notes = append([]models.ClinicalNote(nil), v.Notes...)
	return v
}

func (m *memStore) GetVisitByID(id uint) (*models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, apperror.NotFound("visit not found")
	}
	v = m.copyVisit(v)
	return &v, nil
}

func (m *memStore) SaveVisit(visit *models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveVisit(visit)
	return nil
}

func (m *memStore) SaveVisitWithPrescription(visit *models.Visit, prescription *models.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prescriptions {
		if p.VisitID == visit.ID {
			return apperror.Conflict("prescription already exists")
		}
	}
	prescription.ID = m.id()
	prescription.VisitID = visit.ID
	prescription.CreatedAt = m.now()
	m.storePrescription(prescription)
	visit.PrescriptionID = &prescription.ID
	m.saveVisit(visit)
	return nil
}

func (m *memStore) saveVisit(visit *models.Visit) {
	for i := range visit.Notes {
		if visit.Notes[i].ID == 0 {
			visit.Notes[i].ID = m.id()
		}
	}
	v := m.copyVisit(*visit)
	v.Prescription = nil
	m.visits[v.ID] = v
}

// prescriptions

func (m *memStore) copyPrescription(p models.Prescription) models.Prescription {
	p.LineItems = append([]models.LineItem(nil), p.LineItems...)
	return p
}

func (m *memStore) storePrescription(p *models.Prescription) {
	for i := range p.LineItems {
		if p.LineItems[i].ID == 0 {
			p.LineItems[i].ID = m.id()
		}
		p.LineItems[i].PrescriptionID = p.ID
	}
	p.UpdatedAt = m.now()
	stored := m.copyPrescription(*p)
	stored.Patient, stored.Doctor, stored.Hospital = nil, nil, nil
	m.prescriptions[p.ID] = stored
}

func (m *memStore) loadPrescription(p models.Prescription) models.Prescription {
	p = m.copyPrescription(p)
	if pt, ok := m.patients[p.PatientID]; ok {
		p.Patient = &pt
	}
	if d, ok := m.users[p.DoctorID]; ok {
		p.Doctor = &d
	}
	return p
}

func (m *memStore) GetPrescriptionByID(id uint) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperror.NotFound("prescription not found")
	}
	p = m.loadPrescription(p)
	return &p, nil
}

func (m *memStore) GetPrescriptionByToken(token string) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prescriptions {
		if p.PublicViewToken == token {
			p = m.loadPrescription(p)
			if h, ok := m.hospitals[p.HospitalID]; ok {
				p.Hospital = &h
			}
			return &p, nil
		}
	}
	return nil, apperror.NotFound("prescription not found")
}

func (m *memStore) SavePrescription(prescription *models.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storePrescription(prescription)
	return nil
}

func (m *memStore) GetPharmacyQueue(hospitalID uint) ([]models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Prescription{}
	for _, p := range m.prescriptions {
		if p.HospitalID == hospitalID &&
			(p.Status == models.PrescriptionCreated || p.Status == models.PrescriptionPartiallyDispensed) {
			out = append(out, m.loadPrescription(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) CountPrescriptions(hospitalID uint, status models.PrescriptionStatus, since *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.prescriptions {
		if p.HospitalID != hospitalID || p.Status != status {
			continue
		}
		if since != nil && p.UpdatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n, nil
}

// audit

func (m *memStore) CreateAuditLog(userID *uint, action string, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, action)
	return nil
}

func (m *memStore) prescriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prescriptions)
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.audits...)
}

// sinkEvent is one notification captured by recordingSink
type sinkEvent struct {
	Room    string
	Event   string
	Payload map[string]any
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) NotifyUser(userID uint, event string, payload any) {
	s.record(notification.UserRoom(userID), event, payload)
}

func (s *recordingSink) NotifyTopic(topic string, event string, payload any) {
	s.record(topic, event, payload)
}

func (s *recordingSink) record(room, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := payload.(map[string]any)
	s.events = append(s.events, sinkEvent{Room: room, Event: event, Payload: p})
}

func (s *recordingSink) byEvent(event string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// MockSMSSender is a testify mock of notification.SMSSender
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, to, body string) error {
	args := m.Called(ctx, to, body)
	return args.Error(0)
}

// fixture is one populated store with two hospitals and every role
type fixture struct {
	store *memStore
	sink  *recordingSink
	sms   *MockSMSSender
	now   time.Time

	hospitalA, hospitalB                            models.Hospital
	superAdmin, admin, doctor, doctor2, nurse, shop access.Actor
	doctorB, nurseB                                 access.Actor
	patient                                         models.Patient
	patientB                                        models.Patient

	auth          *AuthService
	hospitals     *HospitalService
	users         *UserService
	patients      *PatientService
	appointments  *AppointmentService
	encounters    *EncounterService
	prescriptions *PrescriptionService
	reports       *ReportService
}

const testPassword = "secret123"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	utils.BcryptCost = 4
	utils.InitJWT("test-secret", time.Hour)

	f := &fixture{
		store: newMemStore(),
		sink:  &recordingSink{},
		sms:   &MockSMSSender{},
		now:   time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	f.store.now = func() time.Time { return f.now }

	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)

	f.hospitalA = models.Hospital{Name: "City Care"}
	adminA := models.User{Email: "admin@citycare.test", FullName: "Asha Admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, f.store.CreateHospitalWithAdmin(&f.hospitalA, &adminA))
	f.hospitalB = models.Hospital{Name: "Green Valley"}
	adminB := models.User{Email: "admin@greenvalley.test", FullName: "Bala Admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, f.store.CreateHospitalWithAdmin(&f.hospitalB, &adminB))

	newUser := func(email, name string, role models.Role, hospital *models.Hospital) access.Actor {
		u := &models.User{Email: email, FullName: name, PasswordHash: hash, Role: role, IsActive: true}
		if hospital != nil {
			u.HospitalID = &hospital.ID
		}
		require.NoError(t, f.store.CreateUser(u))
		loaded, err := f.store.GetUserByID(u.ID)
		require.NoError(t, err)
		return access.ActorFromUser(loaded)
	}

	f.superAdmin = newUser("root@hms.test", "Root", models.RoleSuperAdmin, nil)
	admin, err := f.store.GetUserByID(adminA.ID)
	require.NoError(t, err)
	f.admin = access.ActorFromUser(admin)
	f.doctor = newUser("meera@citycare.test", "meera rao", models.RoleDoctor, &f.hospitalA)
	f.doctor2 = newUser("vikram@citycare.test", "vikram shah", models.RoleDoctor, &f.hospitalA)
	f.nurse = newUser("nina@citycare.test", "Nina Nurse", models.RoleNurse, &f.hospitalA)
	f.shop = newUser("pharmacy@citycare.test", "City Pharmacy", models.RoleMedicalShop, &f.hospitalA)
	f.doctorB = newUser("doc@greenvalley.test", "Other Doctor", models.RoleDoctor, &f.hospitalB)
	f.nurseB = newUser("nurse@greenvalley.test", "Other Nurse", models.RoleNurse, &f.hospitalB)

	f.patient = models.Patient{HospitalID: f.hospitalA.ID, FullName: "Ravi Kumar", PhoneNumber: "9876543210", Sex: models.SexMale}
	require.NoError(t, f.store.CreatePatient(&f.patient))
	f.patientB = models.Patient{HospitalID: f.hospitalB.ID, FullName: "Lata Iyer", PhoneNumber: "9123456780", Sex: models.SexFemale}
	require.NoError(t, f.store.CreatePatient(&f.patientB))

	log := zap.NewNop()
	s := f.store
	f.auth = NewAuthService(s, s, NopRecorder{})
	f.auth.now = func() time.Time { return f.now }
	f.hospitals = NewHospitalService(s, s, s)
	f.users = NewUserService(s, s)
	f.patients = NewPatientService(s, s, s)
	f.appointments = NewAppointmentService(s, s, s, s, f.sink, NopRecorder{})
	f.encounters = NewEncounterService(s, s, s, s, s, f.sink, f.sms, NopRecorder{}, "https://hms.example.com/", log)
	f.encounters.now = func() time.Time { return f.now }
	f.encounters.async = func(fn func()) { fn() }
	f.prescriptions = NewPrescriptionService(s, s, f.sink, NopRecorder{})
	f.prescriptions.now = func() time.Time { return f.now }
	f.reports = NewReportService(s, s)
	f.reports.now = func() time.Time { return f.now }

	return f
}

// schedule books f.patient with the given doctor an hour from f.now
func (f *fixture) schedule(t *testing.T, doctor access.Actor) *models.Appointment {
	t.Helper()
	appointment, err := f.appointments.Create(f.nurse, CreateAppointmentInput{
		PatientID:       f.patient.ID,
		DoctorID:        doctor.UserID,
		AppointmentTime: f.now.Add(time.Hour),
		VisitPurpose:    "Fever",
	})
	require.NoError(t, err)
	return appointment
}

// startedVisit schedules and starts a consultation with f.doctor
func (f *fixture) startedVisit(t *testing.T) *models.Appointment {
	t.Helper()
	appointment := f.schedule(t, f.doctor)
	started, err := f.encounters.Start(f.doctor, appointment.ID)
	require.NoError(t, err)
	return started
}

func (f *fixture) expectSMS() {
	f.sms.On("Send", mock.Anything, f.patient.PhoneNumber, mock.AnythingOfType("string")).Return(nil)
}

func strPtr(s string) *string { return &s }
