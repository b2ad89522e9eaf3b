package handler

import (
	"time"

	"hms-backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserStore) GetUserByID(id uint) (*models.User, error) {
	args := m.Called(id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserStore) ListUsers(filter models.UserFilter) ([]models.User, error) {
	args := m.Called(filter)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserStore) UpdateUser(user *models.User) error {
	return m.Called(user).Error(0)
}

type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) CreateAuditLog(userID *uint, action string, details string) error {
	return m.Called(userID, action, details).Error(0)
}

type MockPatientStore struct {
	mock.Mock
}

func (m *MockPatientStore) CreatePatient(patient *models.Patient) error {
	return m.Called(patient).Error(0)
}

func (m *MockPatientStore) GetPatientByID(id uint) (*models.Patient, error) {
	args := m.Called(id)
	patient, _ := args.Get(0).(*models.Patient)
	return patient, args.Error(1)
}

func (m *MockPatientStore) FindPatientByIdentity(hospitalID uint, fullName, phoneNumber string) (*models.Patient, error) {
	args := m.Called(hospitalID, fullName, phoneNumber)
	patient, _ := args.Get(0).(*models.Patient)
	return patient, args.Error(1)
}

func (m *MockPatientStore) SearchPatientsByPhone(hospitalID uint, digits string) ([]models.Patient, error) {
	args := m.Called(hospitalID, digits)
	patients, _ := args.Get(0).([]models.Patient)
	return patients, args.Error(1)
}

func (m *MockPatientStore) ListPatients(filter models.PatientFilter) ([]models.Patient, error) {
	args := m.Called(filter)
	patients, _ := args.Get(0).([]models.Patient)
	return patients, args.Error(1)
}

type MockAppointmentStore struct {
	mock.Mock
}

func (m *MockAppointmentStore) CreateAppointment(appointment *models.Appointment) error {
	return m.Called(appointment).Error(0)
}

func (m *MockAppointmentStore) GetAppointmentByID(id uint) (*models.Appointment, error) {
	args := m.Called(id)
	appointment, _ := args.Get(0).(*models.Appointment)
	return appointment, args.Error(1)
}

func (m *MockAppointmentStore) UpdateAppointment(appointment *models.Appointment) error {
	return m.Called(appointment).Error(0)
}

func (m *MockAppointmentStore) StartConsultation(appointment *models.Appointment, visit *models.Visit) error {
	return m.Called(appointment, visit).Error(0)
}

func (m *MockAppointmentStore) ListAppointments(filter models.AppointmentFilter) ([]models.Appointment, error) {
	args := m.Called(filter)
	appointments, _ := args.Get(0).([]models.Appointment)
	return appointments, args.Error(1)
}

type MockVisitStore struct {
	mock.Mock
}

func (m *MockVisitStore) GetVisitByID(id uint) (*models.Visit, error) {
	args := m.Called(id)
	visit, _ := args.Get(0).(*models.Visit)
	return visit, args.Error(1)
}

func (m *MockVisitStore) SaveVisit(visit *models.Visit) error {
	return m.Called(visit).Error(0)
}

func (m *MockVisitStore) SaveVisitWithPrescription(visit *models.Visit, prescription *models.Prescription) error {
	return m.Called(visit, prescription).Error(0)
}

type MockPrescriptionStore struct {
	mock.Mock
}

func (m *MockPrescriptionStore) GetPrescriptionByID(id uint) (*models.Prescription, error) {
	args := m.Called(id)
	prescription, _ := args.Get(0).(*models.Prescription)
	return prescription, args.Error(1)
}

func (m *MockPrescriptionStore) GetPrescriptionByToken(token string) (*models.Prescription, error) {
	args := m.Called(token)
	prescription, _ := args.Get(0).(*models.Prescription)
	return prescription, args.Error(1)
}

func (m *MockPrescriptionStore) SavePrescription(prescription *models.Prescription) error {
	return m.Called(prescription).Error(0)
}

func (m *MockPrescriptionStore) GetPharmacyQueue(hospitalID uint) ([]models.Prescription, error) {
	args := m.Called(hospitalID)
	queue, _ := args.Get(0).([]models.Prescription)
	return queue, args.Error(1)
}

func (m *MockPrescriptionStore) CountPrescriptions(hospitalID uint, status models.PrescriptionStatus, since *time.Time) (int64, error) {
	args := m.Called(hospitalID, status, since)
	return args.Get(0).(int64), args.Error(1)
}
