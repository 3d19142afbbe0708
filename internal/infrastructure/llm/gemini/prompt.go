package gemini

import (
	"fmt"
	"strings"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

// buildExtractionPrompt produces the classification+extraction instruction.
// The per-category field lists come from the shared schema so the prompt and
// the ledger's write filter can never drift apart.
func buildExtractionPrompt() string {
	var builder strings.Builder
	builder.WriteString(`You are an expert AI assistant for a loan processing bank.
Classify the provided financial document and extract its key fields.

Return a single clean JSON object with keys in this order:
1. "document_type": one of "Payslip", "Tax Form", "Identity Card", "PAN Card", "Other".
2. "extracted_data": an object mapping each required field for the document type to {"value": string, "confidence": number from 0 to 1}.
3. "analysis": {"red_flags": [strings], "inconsistencies": [strings]} (both may be empty).

Required fields per document type:
`)
	for _, docType := range []domain.DocumentType{domain.TypePayslip, domain.TypeTaxForm, domain.TypePANCard, domain.TypeIdentityCard} {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", docType, strings.Join(domain.FieldsFor(docType), ", ")))
	}
	builder.WriteString(`- Other: extract whatever key fields are present, best effort.

Monetary and numeric fields must be plain unit-less numbers: strip currency symbols and thousands separators.
Do not add any extra text or markdown formatting like ` + "```json" + `.`)
	return builder.String()
}

func buildCrossValidationPrompt(extractions []domain.DocumentExtraction) string {
	var builder strings.Builder
	builder.WriteString(`You are validating a set of loan-application documents belonging to one applicant.
Compare fields like "Applicant Name", "Name" and "Date of Birth" across the documents and flag mismatches in identity or dates.

Documents:
`)
	for idx, extraction := range extractions {
		builder.WriteString(fmt.Sprintf("[%d] file=%s type=%s\n", idx+1, extraction.Filename, extraction.DocumentType))
		for field, value := range extraction.ExtractedData {
			builder.WriteString(fmt.Sprintf("    %s: %s\n", field, value.Value))
		}
	}
	builder.WriteString(`
Respond with a JSON object: {"overall_summary": string, "validation_passed": boolean}.`)
	return builder.String()
}

func buildSummaryPrompt(extractions []domain.DocumentExtraction, crossValidation domain.CrossValidationResult) string {
	var builder strings.Builder
	builder.WriteString(`You are preparing the final underwriting report for one loan application.

Per-document extractions:
`)
	for idx, extraction := range extractions {
		builder.WriteString(fmt.Sprintf("[%d] file=%s type=%s\n", idx+1, extraction.Filename, extraction.DocumentType))
		for field, value := range extraction.ExtractedData {
			builder.WriteString(fmt.Sprintf("    %s: %s (confidence %.2f)\n", field, value.Value, value.Confidence))
		}
		for _, flag := range extraction.Analysis.RedFlags() {
			builder.WriteString(fmt.Sprintf("    red flag: %s\n", flag))
		}
		for _, item := range extraction.Analysis.Inconsistencies() {
			builder.WriteString(fmt.Sprintf("    inconsistency: %s\n", item))
		}
	}
	builder.WriteString(fmt.Sprintf("\nCross-validation: passed=%v, summary=%s\n", crossValidation.ValidationPassed, crossValidation.OverallSummary))
	builder.WriteString(`
Respond with a JSON object:
{"overall_summary": a two-sentence summary,
 "key_financial_metrics": ["Metric: Value", ...],
 "consolidated_red_flags": every red flag and inconsistency across all documents,
 "final_recommendation": one of "Approve", "Deny", "Manual Review Required"}.`)
	return builder.String()
}
