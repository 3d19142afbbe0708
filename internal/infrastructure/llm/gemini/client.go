package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/resilience"
)

// Client talks to a Gemini-style generateContent endpoint. It is constructed
// once at process start and shared read-only between the pipeline stages.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

func New(baseURL, model, apiKey string, options Options) *Client {
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    limiter,
		executor:   options.Executor,
	}
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// promptParts assembles the instruction plus the document's text or page
// images for one inference call.
func promptParts(instruction string, doc domain.NormalizedDocument) []contentPart {
	parts := []contentPart{{Text: instruction}}
	if doc.IsImage() {
		for _, page := range doc.PageImages {
			parts = append(parts, contentPart{InlineData: &inlineData{
				MIMEType: doc.ImageMIME,
				Data:     base64.StdEncoding.EncodeToString(page),
			}})
		}
		return parts
	}
	parts = append(parts, contentPart{Text: "Document text:\n---\n" + doc.Text + "\n---"})
	return parts
}

// generate runs one inference request and returns the raw response text.
func (c *Client) generate(ctx context.Context, operation string, parts []contentPart) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	request := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generation_config": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, request, &response, operation)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyInferenceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", domain.WrapError(domain.ErrMalformedResponse, operation, fmt.Errorf("response carries no candidates"))
	}
	var builder strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}
	return strings.TrimSpace(builder.String()), nil
}

// Extractor is the per-document extraction stage.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

type extractionResponse struct {
	DocumentType  string                           `json:"document_type"`
	ExtractedData map[string]domain.ExtractedField `json:"extracted_data"`
	Analysis      domain.Analysis                  `json:"analysis"`
}

func (e *Extractor) ExtractFields(ctx context.Context, doc domain.NormalizedDocument) (domain.DocumentExtraction, error) {
	raw, err := e.client.generate(ctx, "llm.extract", promptParts(buildExtractionPrompt(), doc))
	if err != nil {
		return domain.DocumentExtraction{}, err
	}

	cleaned := StripCodeFences(raw)
	var parsed extractionResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return domain.DocumentExtraction{}, domain.NewMalformedResponseError("llm.extract", raw, err)
	}
	if parsed.DocumentType == "" || parsed.ExtractedData == nil {
		return domain.DocumentExtraction{}, domain.NewMalformedResponseError("llm.extract", raw,
			fmt.Errorf("missing document_type or extracted_data"))
	}

	return domain.DocumentExtraction{
		DocumentType:  normalizeDocumentType(parsed.DocumentType),
		ExtractedData: parsed.ExtractedData,
		Analysis:      parsed.Analysis,
		Filename:      doc.Filename,
	}, nil
}

func normalizeDocumentType(raw string) domain.DocumentType {
	switch strings.Join(strings.Fields(strings.ToLower(raw)), " ") {
	case "payslip", "pay slip", "salary slip":
		return domain.TypePayslip
	case "tax form", "taxform", "tax return":
		return domain.TypeTaxForm
	case "identity card", "identitycard", "id card":
		return domain.TypeIdentityCard
	case "pan card", "pancard":
		return domain.TypePANCard
	default:
		return domain.TypeOther
	}
}

// CrossValidator is the fan-in consistency stage. Parse failures degrade to
// the fixed fallback value; they never abort the pipeline.
type CrossValidator struct {
	client *Client
}

func NewCrossValidator(client *Client) *CrossValidator {
	return &CrossValidator{client: client}
}

func (v *CrossValidator) CrossValidate(ctx context.Context, extractions []domain.DocumentExtraction) (domain.CrossValidationResult, error) {
	raw, err := v.client.generate(ctx, "llm.crossvalidate", []contentPart{{Text: buildCrossValidationPrompt(extractions)}})
	if err != nil {
		return domain.CrossValidationResult{}, err
	}

	object, ok := ExtractJSONObject(raw)
	if !ok {
		return domain.FallbackCrossValidation(), nil
	}
	var parsed struct {
		OverallSummary   string `json:"overall_summary"`
		ValidationPassed bool   `json:"validation_passed"`
	}
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return domain.FallbackCrossValidation(), nil
	}
	return domain.CrossValidationResult{
		OverallSummary:   parsed.OverallSummary,
		ValidationPassed: parsed.ValidationPassed,
	}, nil
}

// Summarizer is the final aggregation stage, with the same tolerant parse and
// fallback policy as cross-validation.
type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, extractions []domain.DocumentExtraction, crossValidation domain.CrossValidationResult) (domain.FinalSummaryReport, error) {
	raw, err := s.client.generate(ctx, "llm.summarize", []contentPart{{Text: buildSummaryPrompt(extractions, crossValidation)}})
	if err != nil {
		return domain.FinalSummaryReport{}, err
	}

	object, ok := ExtractJSONObject(raw)
	if !ok {
		return domain.FallbackSummaryReport(), nil
	}
	var parsed struct {
		OverallSummary       string   `json:"overall_summary"`
		KeyFinancialMetrics  []string `json:"key_financial_metrics"`
		ConsolidatedRedFlags []string `json:"consolidated_red_flags"`
		FinalRecommendation  string   `json:"final_recommendation"`
	}
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return domain.FallbackSummaryReport(), nil
	}
	if parsed.KeyFinancialMetrics == nil {
		parsed.KeyFinancialMetrics = []string{}
	}
	if parsed.ConsolidatedRedFlags == nil {
		parsed.ConsolidatedRedFlags = []string{}
	}
	return domain.FinalSummaryReport{
		OverallSummary:       parsed.OverallSummary,
		KeyFinancialMetrics:  parsed.KeyFinancialMetrics,
		ConsolidatedRedFlags: parsed.ConsolidatedRedFlags,
		FinalRecommendation:  normalizeRecommendation(parsed.FinalRecommendation),
	}, nil
}

// normalizeRecommendation constrains the model's answer to the allowed set;
// anything else routes to manual review rather than being trusted.
func normalizeRecommendation(raw string) domain.Recommendation {
	switch strings.Join(strings.Fields(strings.ToLower(raw)), " ") {
	case "approve", "approved":
		return domain.RecommendApprove
	case "deny", "denied", "reject", "rejected":
		return domain.RecommendDeny
	default:
		return domain.RecommendManualReview
	}
}
