package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

type stubNormalizer struct {
	err error
}

func (s *stubNormalizer) Normalize(_ context.Context, filename string, data []byte) (domain.NormalizedDocument, error) {
	if s.err != nil {
		return domain.NormalizedDocument{}, s.err
	}
	return domain.NormalizedDocument{Filename: filename, Text: string(data)}, nil
}

type stubExtractor struct {
	mu        sync.Mutex
	inFlight  int32
	maxSeen   int32
	failFor   string
	byFile    map[string]domain.DocumentExtraction
	callCount int
}

func (s *stubExtractor) ExtractFields(_ context.Context, doc domain.NormalizedDocument) (domain.DocumentExtraction, error) {
	current := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, current) {
			break
		}
	}

	s.mu.Lock()
	s.callCount++
	s.mu.Unlock()

	if s.failFor != "" && doc.Filename == s.failFor {
		return domain.DocumentExtraction{}, domain.NewMalformedResponseError("extract", "not json", errors.New("invalid character"))
	}
	if extraction, ok := s.byFile[doc.Filename]; ok {
		return extraction, nil
	}
	return domain.DocumentExtraction{
		DocumentType:  domain.TypeOther,
		ExtractedData: map[string]domain.ExtractedField{},
		Analysis:      domain.AbsentAnalysis(),
		Filename:      doc.Filename,
	}, nil
}

type stubValidator struct {
	result domain.CrossValidationResult
	err    error
	called bool
}

func (s *stubValidator) CrossValidate(_ context.Context, _ []domain.DocumentExtraction) (domain.CrossValidationResult, error) {
	s.called = true
	return s.result, s.err
}

type stubSummarizer struct {
	report        domain.FinalSummaryReport
	err           error
	called        bool
	gotValidation domain.CrossValidationResult
}

func (s *stubSummarizer) Summarize(_ context.Context, _ []domain.DocumentExtraction, cv domain.CrossValidationResult) (domain.FinalSummaryReport, error) {
	s.called = true
	s.gotValidation = cv
	return s.report, s.err
}

func payslipExtraction(filename string) domain.DocumentExtraction {
	return domain.DocumentExtraction{
		DocumentType: domain.TypePayslip,
		ExtractedData: map[string]domain.ExtractedField{
			"Applicant Name":      {Value: "Priya Sharma", Confidence: 0.9},
			"Gross Income":        {Value: "50000", Confidence: 0.9},
			"Net Pay":             {Value: "41000", Confidence: 0.9},
			"Total Taxes":         {Value: "9000", Confidence: 0.9},
			"Pay Period End Date": {Value: "2025-06-30", Confidence: 0.9},
		},
		Analysis: domain.StructuredAnalysis(nil, nil),
		Filename: filename,
	}
}

func panCardExtraction(filename string) domain.DocumentExtraction {
	return domain.DocumentExtraction{
		DocumentType: domain.TypePANCard,
		ExtractedData: map[string]domain.ExtractedField{
			"Name":          {Value: "Priya Sharma", Confidence: 0.9},
			"Date of Birth": {Value: "1991-02-14", Confidence: 0.6},
			"PAN Number":    {Value: "ABCDE1234F", Confidence: 0.95},
		},
		Analysis: domain.AbsentAnalysis(),
		Filename: filename,
	}
}

func TestProcessApplicationHappyPath(t *testing.T) {
	extractor := &stubExtractor{byFile: map[string]domain.DocumentExtraction{
		"payslip.pdf": payslipExtraction("payslip.pdf"),
		"pan.jpg":     panCardExtraction("pan.jpg"),
	}}
	validator := &stubValidator{result: domain.CrossValidationResult{OverallSummary: "names match", ValidationPassed: true}}
	summarizer := &stubSummarizer{report: domain.FinalSummaryReport{
		OverallSummary:      "Income is stable. Identity is consistent.",
		KeyFinancialMetrics: []string{"Gross Income: 50000"},
		FinalRecommendation: domain.RecommendApprove,
	}}

	uc := NewProcessApplicationUseCase(&stubNormalizer{}, extractor, validator, summarizer, nil, nil, 4)
	result, err := uc.ProcessApplication(context.Background(), []Upload{
		{Filename: "payslip.pdf", Data: []byte("payslip text")},
		{Filename: "pan.jpg", Data: []byte{0xff, 0xd8}},
	})
	if err != nil {
		t.Fatalf("ProcessApplication() error = %v", err)
	}
	if result.ApplicationID == "" {
		t.Fatalf("expected generated application id")
	}
	if len(result.DocumentResults) != 2 {
		t.Fatalf("expected 2 document results, got %d", len(result.DocumentResults))
	}
	if result.DocumentResults[0].Filename != "payslip.pdf" || result.DocumentResults[1].Filename != "pan.jpg" {
		t.Fatalf("results must preserve upload order: %s, %s", result.DocumentResults[0].Filename, result.DocumentResults[1].Filename)
	}
	if len(result.FinalSummary.KeyFinancialMetrics) == 0 {
		t.Fatalf("expected non-empty key financial metrics")
	}
	dob := result.DocumentResults[1].ExtractedData["Date of Birth"]
	if !dob.NeedsVerification() {
		t.Fatalf("low-confidence field must be flagged for verification")
	}
	if !result.CrossValidation.ValidationPassed {
		t.Fatalf("expected validation to pass")
	}
}

func TestProcessApplicationFailsWhenAnyDocumentIsTerminal(t *testing.T) {
	extractor := &stubExtractor{
		failFor: "bad.pdf",
		byFile:  map[string]domain.DocumentExtraction{"good.pdf": payslipExtraction("good.pdf")},
	}
	validator := &stubValidator{}
	summarizer := &stubSummarizer{}

	uc := NewProcessApplicationUseCase(&stubNormalizer{}, extractor, validator, summarizer, nil, nil, 2)
	_, err := uc.ProcessApplication(context.Background(), []Upload{
		{Filename: "good.pdf", Data: []byte("a")},
		{Filename: "bad.pdf", Data: []byte("b")},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if raw, ok := domain.RawResponseText(err); !ok || raw != "not json" {
		t.Fatalf("expected raw response text preserved, got %q ok=%v", raw, ok)
	}
	if summarizer.called {
		t.Fatalf("summary must not run for a failed application")
	}
}

func TestCrossValidationErrorDegradesButSummaryStillRuns(t *testing.T) {
	extractor := &stubExtractor{byFile: map[string]domain.DocumentExtraction{"doc.pdf": payslipExtraction("doc.pdf")}}
	validator := &stubValidator{err: errors.New("inference unreachable")}
	summarizer := &stubSummarizer{report: domain.FinalSummaryReport{
		OverallSummary:      "Report generated despite degraded validation.",
		FinalRecommendation: domain.RecommendManualReview,
	}}

	uc := NewProcessApplicationUseCase(&stubNormalizer{}, extractor, validator, summarizer, nil, nil, 1)
	result, err := uc.ProcessApplication(context.Background(), []Upload{{Filename: "doc.pdf", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("ProcessApplication() error = %v", err)
	}
	fallback := domain.FallbackCrossValidation()
	if result.CrossValidation.OverallSummary != fallback.OverallSummary {
		t.Fatalf("expected fallback summary, got %q", result.CrossValidation.OverallSummary)
	}
	if result.CrossValidation.ValidationPassed {
		t.Fatalf("fallback must not pass validation")
	}
	if !result.CrossValidation.Degraded {
		t.Fatalf("fallback must be marked degraded")
	}
	if !summarizer.called {
		t.Fatalf("summary stage must still run after degraded validation")
	}
	if summarizer.gotValidation.OverallSummary != fallback.OverallSummary {
		t.Fatalf("summary stage must receive the fallback validation result")
	}
}

func TestSummaryErrorDegradesToFallbackReport(t *testing.T) {
	extractor := &stubExtractor{byFile: map[string]domain.DocumentExtraction{"doc.pdf": payslipExtraction("doc.pdf")}}
	validator := &stubValidator{result: domain.CrossValidationResult{ValidationPassed: true}}
	summarizer := &stubSummarizer{err: errors.New("timeout")}

	uc := NewProcessApplicationUseCase(&stubNormalizer{}, extractor, validator, summarizer, nil, nil, 1)
	result, err := uc.ProcessApplication(context.Background(), []Upload{{Filename: "doc.pdf", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("ProcessApplication() error = %v", err)
	}
	if result.FinalSummary.FinalRecommendation != domain.RecommendError {
		t.Fatalf("expected Error recommendation, got %s", result.FinalSummary.FinalRecommendation)
	}
	if !strings.Contains(result.FinalSummary.OverallSummary, "failed to generate") {
		t.Fatalf("unexpected fallback summary: %q", result.FinalSummary.OverallSummary)
	}
}

func TestProcessApplicationRejectsEmptyBatch(t *testing.T) {
	uc := NewProcessApplicationUseCase(&stubNormalizer{}, &stubExtractor{}, &stubValidator{}, &stubSummarizer{}, nil, nil, 1)
	_, err := uc.ProcessApplication(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractionConcurrencyIsBounded(t *testing.T) {
	extractor := &stubExtractor{}
	uc := NewProcessApplicationUseCase(&stubNormalizer{}, extractor, &stubValidator{}, &stubSummarizer{}, nil, nil, 2)

	uploads := make([]Upload, 8)
	for i := range uploads {
		uploads[i] = Upload{Filename: "doc" + string(rune('a'+i)) + ".pdf", Data: []byte("x")}
	}
	if _, err := uc.ProcessApplication(context.Background(), uploads); err != nil {
		t.Fatalf("ProcessApplication() error = %v", err)
	}
	if extractor.callCount != 8 {
		t.Fatalf("expected 8 extraction calls, got %d", extractor.callCount)
	}
	if extractor.maxSeen > 2 {
		t.Fatalf("concurrency bound exceeded: saw %d in flight", extractor.maxSeen)
	}
}
