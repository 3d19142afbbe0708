package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

// VerificationRepository persists the append-only ledger of human-verified
// document records.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "db ping", err)
	}
	return db, nil
}

func (r *VerificationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS verified_documents (
	id BIGSERIAL PRIMARY KEY,
	application_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	ai_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	verified_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_verified_documents_active_key
	ON verified_documents(application_id, filename) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_verified_documents_key
	ON verified_documents(application_id, filename);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append deactivates the prior active record for the same
// (application_id, filename) and inserts the new one inside one transaction,
// so readers never observe two active records for a key.
func (r *VerificationRepository) Append(ctx context.Context, record *domain.VerifiedRecord) error {
	aiJSON, err := json.Marshal(orEmpty(record.AIData))
	if err != nil {
		return fmt.Errorf("marshal ai data: %w", err)
	}
	verifiedJSON, err := json.Marshal(orEmpty(record.VerifiedData))
	if err != nil {
		return fmt.Errorf("marshal verified data: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrConnectivity, "begin append tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE verified_documents
SET is_active = FALSE, end_date = $3
WHERE application_id = $1 AND filename = $2 AND is_active
`, record.ApplicationID, record.Filename, now); err != nil {
		return domain.WrapError(domain.ErrSaveFailed, "deactivate prior record", err)
	}

	row := tx.QueryRowContext(ctx, `
INSERT INTO verified_documents (application_id, filename, ai_data, verified_data, start_date, end_date, is_active)
VALUES ($1,$2,$3,$4,$5,NULL,TRUE)
RETURNING id
`, record.ApplicationID, record.Filename, aiJSON, verifiedJSON, record.StartDate)
	if err := row.Scan(&record.ID); err != nil {
		return domain.WrapError(domain.ErrSaveFailed, "insert verified record", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrSaveFailed, "commit verified record", err)
	}
	record.IsActive = true
	return nil
}

// History returns every record ever inserted, active and superseded, in
// insertion order.
func (r *VerificationRepository) History(ctx context.Context) ([]domain.VerifiedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, application_id, filename, ai_data, verified_data, start_date, end_date, is_active
FROM verified_documents
ORDER BY id
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "query ledger history", err)
	}
	defer rows.Close()

	records := []domain.VerifiedRecord{}
	for rows.Next() {
		var record domain.VerifiedRecord
		var aiRaw, verifiedRaw []byte
		var endDate sql.NullTime
		if err := rows.Scan(
			&record.ID, &record.ApplicationID, &record.Filename,
			&aiRaw, &verifiedRaw, &record.StartDate, &endDate, &record.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan verified record: %w", err)
		}
		if err := json.Unmarshal(aiRaw, &record.AIData); err != nil {
			return nil, fmt.Errorf("unmarshal ai data: %w", err)
		}
		if err := json.Unmarshal(verifiedRaw, &record.VerifiedData); err != nil {
			return nil, fmt.Errorf("unmarshal verified data: %w", err)
		}
		if endDate.Valid {
			end := endDate.Time
			record.EndDate = &end
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verified records: %w", err)
	}
	return records, nil
}

// Wipe deletes all records unconditionally. Calling it on an empty table is a
// no-op.
func (r *VerificationRepository) Wipe(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verified_documents`); err != nil {
		return fmt.Errorf("wipe verified records: %w", err)
	}
	return nil
}

func orEmpty(fields map[string]string) map[string]string {
	if fields == nil {
		return map[string]string{}
	}
	return fields
}
