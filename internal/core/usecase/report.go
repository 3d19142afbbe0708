package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/core/ports"
)

// ReportUseCase computes AI-vs-verified agreement statistics over the full
// ledger history.
type ReportUseCase struct {
	ledger ports.VerificationLedger
}

func NewReportUseCase(ledger ports.VerificationLedger) *ReportUseCase {
	return &ReportUseCase{ledger: ledger}
}

func (uc *ReportUseCase) Accuracy(ctx context.Context) (domain.AccuracyReport, error) {
	records, err := uc.ledger.History(ctx)
	if err != nil {
		return domain.AccuracyReport{}, fmt.Errorf("read ledger history: %w", err)
	}
	return ComputeAccuracy(records), nil
}

// ComputeAccuracy aggregates matches and comparable pairs per known field and
// across all fields. A record contributes a pair for a field only when both an
// AI and a verified value exist; overall accuracy is the sum of matches over
// the sum of pairs, not a per-record average.
func ComputeAccuracy(records []domain.VerifiedRecord) domain.AccuracyReport {
	report := domain.AccuracyReport{
		TotalRecords:    len(records),
		Fields:          []domain.FieldAccuracy{},
		NumericAverages: map[string]float64{},
	}

	numericSums := map[string]float64{}
	numericCounts := map[string]int{}

	for _, field := range domain.KnownFieldNames() {
		stats := domain.FieldAccuracy{Field: field}
		for _, record := range records {
			aiValue, haveAI := record.AIData[field]
			verifiedValue, haveVerified := record.VerifiedData[field]
			if haveVerified {
				if number, ok := parseNumeric(verifiedValue); ok {
					numericSums[field] += number
					numericCounts[field]++
				}
			}
			if !haveAI || !haveVerified {
				continue
			}
			stats.ComparablePairs++
			if normalizeValue(aiValue) == normalizeValue(verifiedValue) {
				stats.Matches++
			}
		}
		if stats.ComparablePairs > 0 {
			stats.AgreementRate = float64(stats.Matches) / float64(stats.ComparablePairs)
		}
		report.ComparablePairs += stats.ComparablePairs
		report.Matches += stats.Matches
		report.Fields = append(report.Fields, stats)
	}

	if report.ComparablePairs > 0 {
		report.OverallAccuracy = float64(report.Matches) / float64(report.ComparablePairs)
	}
	for field, count := range numericCounts {
		report.NumericAverages[field] = numericSums[field] / float64(count)
	}
	return report
}

// normalizeValue makes comparison insensitive to case and whitespace.
func normalizeValue(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// parseNumeric strips currency symbols and thousands separators before
// parsing; unparseable values are skipped rather than failing the report.
func parseNumeric(value string) (float64, bool) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '₹', '£', '€', ' ':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return 0, false
	}
	number, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}
