package httpadapter

import (
	"net/http"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnsupportedFormat),
		domain.IsKind(err, domain.ErrEmptyDocument):
		return http.StatusBadRequest
	case resilience.IsCircuitOpen(err),
		domain.IsKind(err, domain.ErrConnectivity):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	payload := map[string]string{"error": err.Error()}
	if raw, ok := domain.RawResponseText(err); ok && raw != "" {
		payload["raw_response"] = raw
	}
	if domain.IsKind(err, domain.ErrSaveFailed) {
		payload["hint"] = "the prior record may already be deactivated; approve again to write a new active record"
	}
	writeJSON(w, mapErrorToHTTPStatus(err), payload)
}
