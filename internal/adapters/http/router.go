package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/core/usecase"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/export"
	"github.com/loandesk/loan-doc-processor/internal/observability/metrics"
)

// 32 MiB covers a full application batch of scanned documents.
const maxUploadBytes = 32 << 20

type Router struct {
	processUC *usecase.ProcessApplicationUseCase
	verifyUC  *usecase.VerifyUseCase
	reportUC  *usecase.ReportUseCase

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	processUC *usecase.ProcessApplicationUseCase,
	verifyUC *usecase.VerifyUseCase,
	reportUC *usecase.ReportUseCase,
	service string,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		processUC: processUC,
		verifyUC:  verifyUC,
		reportUC:  reportUC,
		service:   service,
		metrics:   serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents/process", rt.processDocument)
	mux.HandleFunc("/v1/applications/process", rt.processApplication)
	mux.HandleFunc("/v1/verifications", rt.verifications)
	mux.HandleFunc("/v1/reports/accuracy", rt.accuracyReport)
	mux.HandleFunc("/v1/reports/export", rt.exportReport)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read uploaded file"})
		return
	}

	start := time.Now()
	extraction, err := rt.processUC.ProcessDocument(r.Context(), fileHeader.Filename, data)
	rt.metrics.RecordStageDuration(rt.service, "extraction", time.Since(start))
	if err != nil {
		rt.metrics.RecordInferenceCall(rt.service, "extract", "error")
		rt.metrics.RecordDocumentProcessed(rt.service, "", "error")
		writeError(w, err)
		return
	}
	rt.metrics.RecordInferenceCall(rt.service, "extract", "success")
	rt.metrics.RecordDocumentProcessed(rt.service, string(extraction.DocumentType), "success")
	writeJSON(w, http.StatusOK, extraction)
}

func (rt *Router) processApplication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	uploads := make([]usecase.Upload, 0, len(r.MultipartForm.File["files"]))
	for _, fileHeader := range r.MultipartForm.File["files"] {
		file, err := fileHeader.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to open uploaded file " + fileHeader.Filename})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read uploaded file " + fileHeader.Filename})
			return
		}
		uploads = append(uploads, usecase.Upload{Filename: fileHeader.Filename, Data: data})
	}

	start := time.Now()
	result, err := rt.processUC.ProcessApplication(r.Context(), uploads)
	rt.metrics.RecordStageDuration(rt.service, "application", time.Since(start))
	if err != nil {
		rt.metrics.RecordInferenceCall(rt.service, "extract", "error")
		rt.metrics.RecordDocumentProcessed(rt.service, "", "error")
		writeError(w, err)
		return
	}
	rt.recordApplicationOutcome(result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordApplicationOutcome(result domain.ApplicationResult) {
	for _, extraction := range result.DocumentResults {
		rt.metrics.RecordInferenceCall(rt.service, "extract", "success")
		rt.metrics.RecordDocumentProcessed(rt.service, string(extraction.DocumentType), "success")
	}
	crossOutcome := "success"
	if result.CrossValidation.Degraded {
		crossOutcome = "fallback"
		rt.metrics.RecordStageFallback(rt.service, "cross_validation")
	}
	rt.metrics.RecordInferenceCall(rt.service, "cross_validate", crossOutcome)

	summaryOutcome := "success"
	if result.FinalSummary.Degraded {
		summaryOutcome = "fallback"
		rt.metrics.RecordStageFallback(rt.service, "summary")
	}
	rt.metrics.RecordInferenceCall(rt.service, "summarize", summaryOutcome)
}

func (rt *Router) verifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.approveVerification(w, r)
	case http.MethodGet:
		rt.listVerifications(w, r)
	case http.MethodDelete:
		rt.wipeVerifications(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) approveVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicationID string            `json:"application_id"`
		Filename      string            `json:"filename"`
		OriginalAI    map[string]string `json:"original_ai_data"`
		VerifiedData  map[string]string `json:"verified_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	record, err := rt.verifyUC.Approve(r.Context(), req.ApplicationID, req.Filename, req.OriginalAI, req.VerifiedData)
	if err != nil {
		rt.metrics.RecordVerification(rt.service, "error")
		writeError(w, err)
		return
	}
	rt.metrics.RecordVerification(rt.service, "saved")
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":  "saved",
		"message": "verified data for " + record.Filename + " saved as the active record",
	})
}

func (rt *Router) listVerifications(w http.ResponseWriter, r *http.Request) {
	records, err := rt.verifyUC.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (rt *Router) wipeVerifications(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "wipe requires confirm=true"})
		return
	}
	if err := rt.verifyUC.Wipe(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "wiped",
		"message": "all verified records deleted",
	})
}

func (rt *Router) accuracyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	report, err := rt.reportUC.Accuracy(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	records, err := rt.verifyUC.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	workbook, err := export.Workbook(records, usecase.ComputeAccuracy(records))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="verification_report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(workbook)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
