package ports

import (
	"context"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

// DocumentNormalizer turns uploaded bytes into the uniform representation the
// extraction stage consumes. Dispatch is by filename extension.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, filename string, data []byte) (domain.NormalizedDocument, error)
}

// FieldExtractor performs one classification+extraction inference call per
// normalized document.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, doc domain.NormalizedDocument) (domain.DocumentExtraction, error)
}

// CrossValidator compares identity fields across all extractions of one
// application. Implementations degrade to domain.FallbackCrossValidation on
// unparseable responses instead of returning an error.
type CrossValidator interface {
	CrossValidate(ctx context.Context, extractions []domain.DocumentExtraction) (domain.CrossValidationResult, error)
}

// SummaryGenerator produces the final underwriting report over all
// extractions plus the cross-validation result.
type SummaryGenerator interface {
	Summarize(ctx context.Context, extractions []domain.DocumentExtraction, crossValidation domain.CrossValidationResult) (domain.FinalSummaryReport, error)
}

// VerificationLedger is the append-only store of human-corrected records.
// Append must deactivate the prior active record for the same
// (application_id, filename) and insert the new one as a single logical unit.
type VerificationLedger interface {
	Append(ctx context.Context, record *domain.VerifiedRecord) error
	History(ctx context.Context) ([]domain.VerifiedRecord, error)
	Wipe(ctx context.Context) error
}

// EventPublisher emits best-effort audit events. A publish failure never fails
// the originating operation.
type EventPublisher interface {
	PublishApplicationProcessed(ctx context.Context, result domain.ApplicationResult) error
	PublishVerificationApproved(ctx context.Context, applicationID, filename string) error
}
