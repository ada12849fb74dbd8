package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ReceiptSequenceRepository owns the per-academic-year receipt counter.
// The counter is shared by every enrollment in the school, so the increment
// must be atomic and must not sit inside the per-enrollment lock.
type ReceiptSequenceRepository struct {
	db *sqlx.DB
}

// NewReceiptSequenceRepository constructs the repository.
func NewReceiptSequenceRepository(db *sqlx.DB) *ReceiptSequenceRepository {
	return &ReceiptSequenceRepository{db: db}
}

// Next atomically advances and returns the counter for an academic year.
// First use of a year seeds the row at 1.
func (r *ReceiptSequenceRepository) Next(ctx context.Context, academicYearID string) (int64, error) {
	var next int64
	query := `INSERT INTO receipt_sequences (academic_year_id, last_number) VALUES ($1, 1)
        ON CONFLICT (academic_year_id) DO UPDATE SET last_number = receipt_sequences.last_number + 1
        RETURNING last_number`
	if err := r.db.GetContext(ctx, &next, query, academicYearID); err != nil {
		return 0, fmt.Errorf("next receipt number: %w", err)
	}
	return next, nil
}

// Current returns the counter without advancing it, zero when unseeded.
func (r *ReceiptSequenceRepository) Current(ctx context.Context, academicYearID string) (int64, error) {
	var current int64
	query := "SELECT COALESCE(MAX(last_number), 0) FROM receipt_sequences WHERE academic_year_id = $1"
	if err := r.db.GetContext(ctx, &current, query, academicYearID); err != nil {
		return 0, fmt.Errorf("current receipt number: %w", err)
	}
	return current, nil
}
