package domain

import "time"

// VerifiedRecord is one row of the append-only verification ledger. A new
// approval for the same (application_id, filename) supersedes the prior active
// record instead of mutating it.
type VerifiedRecord struct {
	ID            int64             `json:"id"`
	ApplicationID string            `json:"application_id"`
	Filename      string            `json:"filename"`
	AIData        map[string]string `json:"ai_data"`
	VerifiedData  map[string]string `json:"verified_data"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       *time.Time        `json:"end_date"`
	IsActive      bool              `json:"is_active"`
}

// FieldAccuracy is the agreement statistics for one known field across the
// full ledger history.
type FieldAccuracy struct {
	Field           string  `json:"field"`
	ComparablePairs int     `json:"comparable_pairs"`
	Matches         int     `json:"matches"`
	AgreementRate   float64 `json:"agreement_rate"`
}

// AccuracyReport aggregates matches and comparable pairs across all known
// fields and all records. Overall accuracy is sum-of-matches over
// sum-of-pairs, not a per-record average.
type AccuracyReport struct {
	TotalRecords    int             `json:"total_records"`
	ComparablePairs int             `json:"comparable_pairs"`
	Matches         int             `json:"matches"`
	OverallAccuracy float64         `json:"overall_accuracy"`
	Fields          []FieldAccuracy `json:"fields"`
	// NumericAverages holds the mean verified value per numeric-looking
	// field, over records where the value parses as a number.
	NumericAverages map[string]float64 `json:"numeric_averages"`
}
