package service

import (
	"fmt"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/report"
)

// ReportFile is a rendered document ready to be sent as an attachment
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ReportService struct {
	patients     PatientStore
	appointments AppointmentStore
	now          func() time.Time
}

func NewReportService(patients PatientStore, appointments AppointmentStore) *ReportService {
	return &ReportService{
		patients:     patients,
		appointments: appointments,
		now:          time.Now,
	}
}

// PatientReport renders the patient's completed encounters
func (s *ReportService) PatientReport(actor access.Actor, patientID uint) (*ReportFile, error) {
	if err := access.Authorize(actor, access.OpPatientReport); err != nil {
		return nil, err
	}
	patient, err := loadPatient(s.patients, actor, patientID)
	if err != nil {
		return nil, err
	}
	history, err := completedHistory(s.appointments, patient)
	if err != nil {
		return nil, err
	}

	data, err := report.Render(report.Input{
		Patient:     patient,
		Hospital:    patient.Hospital,
		History:     history,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not generate patient report: %w", err)
	}

	return &ReportFile{
		Filename:    report.Filename(patient),
		ContentType: report.ContentType,
		Data:        data,
	}, nil
}
