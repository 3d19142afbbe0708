package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

func TestWorkbookContainsRecordsAndAccuracy(t *testing.T) {
	ended := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	records := []domain.VerifiedRecord{
		{
			ID:            1,
			ApplicationID: "app-1",
			Filename:      "payslip.pdf",
			AIData:        map[string]string{"Applicant Name": "Jane Roe", "Net Pay": "45000"},
			VerifiedData:  map[string]string{"Applicant Name": "Jane Roe", "Net Pay": "45500"},
			StartDate:     time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
			EndDate:       &ended,
			IsActive:      false,
		},
		{
			ID:            2,
			ApplicationID: "app-1",
			Filename:      "payslip.pdf",
			AIData:        map[string]string{"Applicant Name": "Jane Roe"},
			VerifiedData:  map[string]string{"Applicant Name": "Jane Roe"},
			StartDate:     ended,
			IsActive:      true,
		},
	}
	report := domain.AccuracyReport{
		TotalRecords:    2,
		ComparablePairs: 3,
		Matches:         2,
		OverallAccuracy: 2.0 / 3.0,
		Fields: []domain.FieldAccuracy{
			{Field: "Applicant Name", ComparablePairs: 2, Matches: 2, AgreementRate: 1},
			{Field: "Net Pay", ComparablePairs: 1, Matches: 0, AgreementRate: 0},
		},
		NumericAverages: map[string]float64{"Net Pay": 45500},
	}

	data, err := Workbook(records, report)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) != 2 || sheets[0] != recordsSheet || sheets[1] != accuracySheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	appID, err := file.GetCellValue(recordsSheet, "B2")
	if err != nil {
		t.Fatalf("read B2: %v", err)
	}
	if appID != "app-1" {
		t.Fatalf("application id cell = %q", appID)
	}
	ai, _ := file.GetCellValue(recordsSheet, "D2")
	if ai != "Applicant Name: Jane Roe; Net Pay: 45000" {
		t.Fatalf("ai data cell = %q", ai)
	}
	end, _ := file.GetCellValue(recordsSheet, "G3")
	if end != "" {
		t.Fatalf("active row should have empty end date, got %q", end)
	}

	field, _ := file.GetCellValue(accuracySheet, "A2")
	if field != "Applicant Name" {
		t.Fatalf("first accuracy field = %q", field)
	}
}

func TestWorkbookEmptyHistory(t *testing.T) {
	data, err := Workbook(nil, domain.AccuracyReport{})
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer file.Close()
	header, _ := file.GetCellValue(recordsSheet, "A1")
	if header != "ID" {
		t.Fatalf("header = %q", header)
	}
}
