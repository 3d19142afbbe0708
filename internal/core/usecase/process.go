package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/core/ports"
)

// Upload is one (filename, bytes) pair of an application batch.
type Upload struct {
	Filename string
	Data     []byte
}

// ProcessApplicationUseCase runs the three-stage pipeline: per-document
// extraction fans out concurrently, then cross-validation and summary run as
// sequential fan-in barriers.
type ProcessApplicationUseCase struct {
	normalizer ports.DocumentNormalizer
	extractor  ports.FieldExtractor
	validator  ports.CrossValidator
	summarizer ports.SummaryGenerator
	events     ports.EventPublisher
	logger     *slog.Logger

	maxConcurrentExtractions int
}

func NewProcessApplicationUseCase(
	normalizer ports.DocumentNormalizer,
	extractor ports.FieldExtractor,
	validator ports.CrossValidator,
	summarizer ports.SummaryGenerator,
	events ports.EventPublisher,
	logger *slog.Logger,
	maxConcurrentExtractions int,
) *ProcessApplicationUseCase {
	if maxConcurrentExtractions <= 0 {
		maxConcurrentExtractions = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessApplicationUseCase{
		normalizer:               normalizer,
		extractor:                extractor,
		validator:                validator,
		summarizer:               summarizer,
		events:                   events,
		logger:                   logger,
		maxConcurrentExtractions: maxConcurrentExtractions,
	}
}

// ProcessDocument extracts a single document outside of an application batch.
func (uc *ProcessApplicationUseCase) ProcessDocument(ctx context.Context, filename string, data []byte) (domain.DocumentExtraction, error) {
	normalized, err := uc.normalizer.Normalize(ctx, filename, data)
	if err != nil {
		return domain.DocumentExtraction{}, fmt.Errorf("normalize %s: %w", filename, err)
	}
	extraction, err := uc.extractor.ExtractFields(ctx, normalized)
	if err != nil {
		return domain.DocumentExtraction{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	return extraction, nil
}

// ProcessApplication runs the full pipeline over one batch. Any terminal
// per-document failure fails the whole application; cross-validation and
// summary failures degrade to fixed fallback values instead.
func (uc *ProcessApplicationUseCase) ProcessApplication(ctx context.Context, uploads []Upload) (domain.ApplicationResult, error) {
	if len(uploads) == 0 {
		return domain.ApplicationResult{}, domain.WrapError(domain.ErrInvalidInput, "process application", fmt.Errorf("no documents supplied"))
	}

	applicationID := uuid.NewString()
	logger := uc.logger.With("application_id", applicationID, "documents", len(uploads))
	logger.Info("application_processing_started")

	extractions, err := uc.extractAll(ctx, uploads)
	if err != nil {
		logger.Error("application_processing_failed", "error", err)
		return domain.ApplicationResult{}, err
	}

	crossValidation := uc.crossValidate(ctx, logger, extractions)
	finalSummary := uc.summarize(ctx, logger, extractions, crossValidation)

	result := domain.ApplicationResult{
		ApplicationID:   applicationID,
		DocumentResults: extractions,
		CrossValidation: crossValidation,
		FinalSummary:    finalSummary,
	}

	uc.publishProcessed(ctx, logger, result)
	logger.Info("application_processing_finished",
		"recommendation", string(finalSummary.FinalRecommendation),
		"validation_passed", crossValidation.ValidationPassed,
	)
	return result, nil
}

// extractAll fans out per-document extraction under a concurrency bound. The
// documents have no data dependency on each other; the bound respects the
// inference service's rate limits.
func (uc *ProcessApplicationUseCase) extractAll(ctx context.Context, uploads []Upload) ([]domain.DocumentExtraction, error) {
	extractions := make([]domain.DocumentExtraction, len(uploads))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.maxConcurrentExtractions)
	for i, upload := range uploads {
		group.Go(func() error {
			extraction, err := uc.ProcessDocument(groupCtx, upload.Filename, upload.Data)
			if err != nil {
				return err
			}
			extractions[i] = extraction
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return extractions, nil
}

func (uc *ProcessApplicationUseCase) crossValidate(ctx context.Context, logger *slog.Logger, extractions []domain.DocumentExtraction) domain.CrossValidationResult {
	result, err := uc.validator.CrossValidate(ctx, extractions)
	if err != nil {
		logger.Warn("cross_validation_degraded", "error", err)
		return domain.FallbackCrossValidation()
	}
	if result.Degraded {
		logger.Warn("cross_validation_degraded", "reason", "unparseable response")
	}
	return result
}

func (uc *ProcessApplicationUseCase) summarize(ctx context.Context, logger *slog.Logger, extractions []domain.DocumentExtraction, crossValidation domain.CrossValidationResult) domain.FinalSummaryReport {
	report, err := uc.summarizer.Summarize(ctx, extractions, crossValidation)
	if err != nil {
		logger.Warn("summary_degraded", "error", err)
		return domain.FallbackSummaryReport()
	}
	if report.Degraded {
		logger.Warn("summary_degraded", "reason", "unparseable response")
	}
	return report
}

func (uc *ProcessApplicationUseCase) publishProcessed(ctx context.Context, logger *slog.Logger, result domain.ApplicationResult) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishApplicationProcessed(ctx, result); err != nil {
		logger.Warn("publish_application_event_failed", "error", err)
	}
}
