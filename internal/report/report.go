// Package report renders a patient's completed encounters into an XLSX workbook.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"hms-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	PatientSheet = "Patient"
	VisitsSheet  = "Visits"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout     = "January 2, 2006"
	dateTimeLayout = "January 2, 2006 at 3:04 PM"
	notAvailable   = "N/A"
)

// VisitHeader is the header row of the visits sheet
var VisitHeader = []string{
	"Date",
	"Doctor",
	"Speciality",
	"Purpose",
	"Subjective",
	"Objective",
	"Assessment",
	"Plan",
	"Next Visit",
	"Prescription",
}

// Input is everything a patient report is built from. History holds Completed
// appointments newest first, with doctor, visit and prescription loaded.
type Input struct {
	Patient     *models.Patient
	Hospital    *models.Hospital
	History     []models.Appointment
	GeneratedAt time.Time
}

// Filename returns "<Full_Name>-<phone>.xlsx"
func Filename(p *models.Patient) string {
	name := strings.Join(strings.Fields(p.FullName), "_")
	return fmt.Sprintf("%s-%s.xlsx", name, p.PhoneNumber)
}

// DoctorName formats a name as "Dr. Title Case"
func DoctorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return notAvailable
	}
	name = titleCase(name)
	if !strings.HasPrefix(strings.ToLower(name), "dr.") {
		name = "Dr. " + name
	}
	return name
}

func titleCase(s string) string {
	runes := []rune(s)
	start := true
	for i, r := range runes {
		if start && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
		}
		start = !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return string(runes)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.Format(dateLayout)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// Medicines summarises a prescription on one line
func Medicines(p *models.Prescription) string {
	if p == nil {
		return ""
	}
	if p.PrescriptionType == models.PrescriptionHandwritten && len(p.LineItems) == 0 {
		return "Handwritten prescription"
	}
	parts := make([]string, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		desc := item.MedicineName
		details := make([]string, 0, 3)
		if item.Dose != "" {
			details = append(details, item.Dose)
		}
		if item.Frequency != "" {
			details = append(details, item.Frequency)
		}
		if item.DurationDays > 0 {
			details = append(details, fmt.Sprintf("%d days", item.DurationDays))
		}
		if len(details) > 0 {
			desc += " (" + strings.Join(details, ", ") + ")"
		}
		parts = append(parts, desc)
	}
	return strings.Join(parts, "; ")
}

// Render builds the workbook and returns its bytes
func Render(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PatientSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(VisitsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writePatientSheet(f, in, headerStyle); err != nil {
		return nil, err
	}
	if err := writeVisitsSheet(f, in.History, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writePatientSheet(f *excelize.File, in Input, headerStyle int) error {
	p := in.Patient
	hospital := notAvailable
	if in.Hospital != nil {
		hospital = in.Hospital.Name
	}
	age := notAvailable
	if a := p.AgeAt(in.GeneratedAt); a >= 0 {
		age = fmt.Sprintf("%d", a)
	}
	diagnosis := notAvailable
	if len(in.History) > 0 && in.History[0].Visit != nil {
		diagnosis = orNA(in.History[0].Visit.Assessment)
	}

	rows := [][2]string{
		{"Hospital", hospital},
		{"Patient Name", p.FullName},
		{"Age", age},
		{"Sex", orNA(string(p.Sex))},
		{"Phone Number", p.PhoneNumber},
		{"Height", orNA(p.Height)},
		{"Weight", orNA(p.Weight)},
		{"Latest Diagnosis", diagnosis},
		{"Generated On", in.GeneratedAt.Format(dateTimeLayout)},
	}
	for i, row := range rows {
		label := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(PatientSheet, label, row[0]); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", label, err)
		}
		if err := f.SetCellStyle(PatientSheet, label, label, headerStyle); err != nil {
			return fmt.Errorf("failed to set style: %w", err)
		}
		if err := f.SetCellValue(PatientSheet, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return fmt.Errorf("failed to set cell B%d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(PatientSheet, "A", "A", 20); err != nil {
		return err
	}
	return f.SetColWidth(PatientSheet, "B", "B", 40)
}

func writeVisitsSheet(f *excelize.File, history []models.Appointment, headerStyle int) error {
	for col, header := range VisitHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(VisitsSheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(VisitsSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, appt := range history {
		doctor, speciality := notAvailable, notAvailable
		if appt.Doctor != nil {
			doctor = DoctorName(appt.Doctor.FullName)
			speciality = orNA(appt.Doctor.Speciality)
		}
		when := appt.AppointmentTime
		values := []any{
			formatDate(&when),
			doctor,
			speciality,
			orNA(appt.VisitPurpose),
		}
		if v := appt.Visit; v != nil {
			values = append(values, v.Subjective, v.Objective, v.Assessment, v.Plan, formatDate(v.NextVisitDate), Medicines(v.Prescription))
		} else {
			values = append(values, "", "", "", "", notAvailable, "")
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(VisitsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f.SetColWidth(VisitsSheet, "A", "J", 22)
}
