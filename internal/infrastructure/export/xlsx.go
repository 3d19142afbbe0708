package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

const (
	recordsSheet  = "Verified Records"
	accuracySheet = "Accuracy"
)

// Workbook renders the full ledger history plus the accuracy report as an
// XLSX workbook for loan-ops review.
func Workbook(records []domain.VerifiedRecord, report domain.AccuracyReport) ([]byte, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := file.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, fmt.Errorf("rename records sheet: %w", err)
	}
	if err := writeRecordsSheet(file, records); err != nil {
		return nil, err
	}
	if _, err := file.NewSheet(accuracySheet); err != nil {
		return nil, fmt.Errorf("create accuracy sheet: %w", err)
	}
	if err := writeAccuracySheet(file, report); err != nil {
		return nil, err
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

func writeRecordsSheet(file *excelize.File, records []domain.VerifiedRecord) error {
	header := []any{"ID", "Application ID", "Filename", "AI Data", "Verified Data", "Start Date", "End Date", "Active"}
	if err := file.SetSheetRow(recordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write records header: %w", err)
	}
	for i, record := range records {
		endDate := ""
		if record.EndDate != nil {
			endDate = record.EndDate.Format("2006-01-02 15:04:05")
		}
		row := []any{
			record.ID,
			record.ApplicationID,
			record.Filename,
			flattenFields(record.AIData),
			flattenFields(record.VerifiedData),
			record.StartDate.Format("2006-01-02 15:04:05"),
			endDate,
			record.IsActive,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("write record row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeAccuracySheet(file *excelize.File, report domain.AccuracyReport) error {
	header := []any{"Field", "Comparable Pairs", "Matches", "Agreement Rate"}
	if err := file.SetSheetRow(accuracySheet, "A1", &header); err != nil {
		return fmt.Errorf("write accuracy header: %w", err)
	}
	row := 2
	for _, field := range report.Fields {
		values := []any{field.Field, field.ComparablePairs, field.Matches, field.AgreementRate}
		if err := file.SetSheetRow(accuracySheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("write accuracy row: %w", err)
		}
		row++
	}
	row++
	overall := []any{"Overall", report.ComparablePairs, report.Matches, report.OverallAccuracy}
	if err := file.SetSheetRow(accuracySheet, fmt.Sprintf("A%d", row), &overall); err != nil {
		return fmt.Errorf("write overall row: %w", err)
	}

	row += 2
	averages := []any{"Numeric Averages"}
	if err := file.SetSheetRow(accuracySheet, fmt.Sprintf("A%d", row), &averages); err != nil {
		return fmt.Errorf("write averages title: %w", err)
	}
	fields := make([]string, 0, len(report.NumericAverages))
	for field := range report.NumericAverages {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		row++
		values := []any{field, report.NumericAverages[field]}
		if err := file.SetSheetRow(accuracySheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("write average row: %w", err)
		}
	}
	return nil
}

func flattenFields(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+": "+fields[name])
	}
	return strings.Join(pairs, "; ")
}
