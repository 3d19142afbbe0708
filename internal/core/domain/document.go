package domain

// DocumentType is the category the extraction stage assigns to an uploaded file.
type DocumentType string

const (
	TypePayslip      DocumentType = "Payslip"
	TypeTaxForm      DocumentType = "Tax Form"
	TypeIdentityCard DocumentType = "Identity Card"
	TypePANCard      DocumentType = "PAN Card"
	TypeOther        DocumentType = "Other"
)

// ConfidenceThreshold is the cutoff below which an extracted field is flagged
// for human verification.
const ConfidenceThreshold = 0.75

type ExtractedField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

func (f ExtractedField) NeedsVerification() bool {
	return f.Confidence < ConfidenceThreshold
}

// NormalizedDocument is the uniform representation the normalizer produces
// from uploaded bytes: either extracted text or one or more page images.
type NormalizedDocument struct {
	Filename   string
	Text       string
	PageImages [][]byte
	ImageMIME  string
}

func (d NormalizedDocument) IsImage() bool {
	return len(d.PageImages) > 0
}

// DocumentExtraction is the immutable per-document result of the extraction stage.
type DocumentExtraction struct {
	DocumentType  DocumentType              `json:"document_type"`
	ExtractedData map[string]ExtractedField `json:"extracted_data"`
	Analysis      Analysis                  `json:"analysis"`
	Filename      string                    `json:"filename"`
}

// FieldValues flattens the extraction into plain field->value pairs, the shape
// the verification ledger snapshots.
func (e DocumentExtraction) FieldValues() map[string]string {
	out := make(map[string]string, len(e.ExtractedData))
	for name, field := range e.ExtractedData {
		out[name] = field.Value
	}
	return out
}

type CrossValidationResult struct {
	OverallSummary   string `json:"overall_summary"`
	ValidationPassed bool   `json:"validation_passed"`
	Degraded         bool   `json:"degraded,omitempty"`
}

// FallbackCrossValidation is the fixed value the pipeline degrades to when the
// cross-validation response cannot be parsed.
func FallbackCrossValidation() CrossValidationResult {
	return CrossValidationResult{
		OverallSummary:   "AI cross-validation returned an invalid format.",
		ValidationPassed: false,
		Degraded:         true,
	}
}

type Recommendation string

const (
	RecommendApprove      Recommendation = "Approve"
	RecommendDeny         Recommendation = "Deny"
	RecommendManualReview Recommendation = "Manual Review Required"
	RecommendError        Recommendation = "Error"
)

type FinalSummaryReport struct {
	OverallSummary       string         `json:"overall_summary"`
	KeyFinancialMetrics  []string       `json:"key_financial_metrics"`
	ConsolidatedRedFlags []string       `json:"consolidated_red_flags"`
	FinalRecommendation  Recommendation `json:"final_recommendation"`
	Degraded             bool           `json:"degraded,omitempty"`
}

func FallbackSummaryReport() FinalSummaryReport {
	return FinalSummaryReport{
		OverallSummary:       "AI failed to generate a final summary report.",
		KeyFinancialMetrics:  []string{},
		ConsolidatedRedFlags: []string{},
		FinalRecommendation:  RecommendError,
		Degraded:             true,
	}
}

// ApplicationResult is the full outcome of processing one application batch.
// It lives only for the duration of the request; the application ID is carried
// into verification records for traceability.
type ApplicationResult struct {
	ApplicationID   string                `json:"application_id"`
	DocumentResults []DocumentExtraction  `json:"individual_document_results"`
	CrossValidation CrossValidationResult `json:"cross_validation_report"`
	FinalSummary    FinalSummaryReport    `json:"final_summary_report"`
}
