package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
	"github.com/loandesk/loan-doc-processor/internal/core/ports"
)

// VerifyUseCase is the human-in-the-loop side of the system: it accepts
// corrected field values and appends them to the versioned ledger.
type VerifyUseCase struct {
	ledger ports.VerificationLedger
	events ports.EventPublisher
	logger *slog.Logger

	// Approvals for the same (application_id, filename) must not interleave;
	// different keys proceed in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewVerifyUseCase(ledger ports.VerificationLedger, events ports.EventPublisher, logger *slog.Logger) *VerifyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerifyUseCase{
		ledger: ledger,
		events: events,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Approve records a human-verified snapshot for one document. Field names
// outside the shared schema vocabulary are dropped before persisting. The
// prior active record for the key is superseded, never mutated.
func (uc *VerifyUseCase) Approve(ctx context.Context, applicationID, filename string, aiData, verifiedData map[string]string) (*domain.VerifiedRecord, error) {
	applicationID = strings.TrimSpace(applicationID)
	filename = strings.TrimSpace(filename)
	if applicationID == "" || filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "approve verification", fmt.Errorf("application_id and filename are required"))
	}
	if len(verifiedData) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "approve verification", fmt.Errorf("verified_data is empty"))
	}

	record := &domain.VerifiedRecord{
		ApplicationID: applicationID,
		Filename:      filename,
		AIData:        domain.FilterKnownFields(aiData),
		VerifiedData:  domain.FilterKnownFields(verifiedData),
		StartDate:     time.Now().UTC(),
		IsActive:      true,
	}

	unlock := uc.lockKey(applicationID, filename)
	defer unlock()

	if err := uc.ledger.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append verified record: %w", err)
	}

	uc.logger.Info("verification_approved",
		"application_id", applicationID,
		"filename", filename,
		"fields", len(record.VerifiedData),
	)
	if uc.events != nil {
		if err := uc.events.PublishVerificationApproved(ctx, applicationID, filename); err != nil {
			uc.logger.Warn("publish_verification_event_failed", "error", err)
		}
	}
	return record, nil
}

func (uc *VerifyUseCase) History(ctx context.Context) ([]domain.VerifiedRecord, error) {
	records, err := uc.ledger.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger history: %w", err)
	}
	return records, nil
}

// Wipe deletes every record unconditionally. The explicit-confirmation gate
// belongs to the HTTP boundary, not here.
func (uc *VerifyUseCase) Wipe(ctx context.Context) error {
	if err := uc.ledger.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe ledger: %w", err)
	}
	uc.logger.Info("verification_ledger_wiped")
	return nil
}

func (uc *VerifyUseCase) lockKey(applicationID, filename string) func() {
	key := applicationID + "\x00" + filename

	uc.mu.Lock()
	lock, ok := uc.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		uc.locks[key] = lock
	}
	uc.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
