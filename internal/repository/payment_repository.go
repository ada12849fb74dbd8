package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

const paymentColumns = `id, receipt_no, enrollment_id, academic_year_id, total_amount, payment_date, method, status,
        collected_by, remarks, reversal_of, reversed_by, student, academic_year, items, created_at`

// PaymentRepository handles the append-only payment ledger.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns ledger entries matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}
	if filter.CollectedBy != "" {
		conditions = append(conditions, fmt.Sprintf("collected_by = $%d", len(args)+1))
		args = append(args, filter.CollectedBy)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY payment_date DESC, created_at DESC LIMIT %d OFFSET %d",
		paymentColumns, base, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListByEnrollment returns the enrollment's complete ledger in payment order,
// the input the balance recalculator derives truth from.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	var payments []models.Payment
	query := fmt.Sprintf("SELECT %s FROM payments WHERE enrollment_id = $1 ORDER BY payment_date ASC, created_at ASC", paymentColumns)
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments for enrollment: %w", err)
	}
	return payments, nil
}

// FindByID returns a single ledger entry.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// AppendWithEnrollment writes the ledger entry and the enrollment balance
// effect in one transaction. A payment must never exist without its balance
// effect applied, and vice versa.
func (r *PaymentRepository) AppendWithEnrollment(ctx context.Context, payment *models.Payment, enrollment *models.StudentEnrollment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPaymentTx(ctx, tx, payment); err != nil {
		return err
	}
	if err := saveEnrollmentTx(ctx, tx, enrollment); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocation tx: %w", err)
	}
	return nil
}

// AppendReversal writes the reversal entry, flips the original entry to
// REVERSED and saves the recomputed enrollment, all in one transaction.
func (r *PaymentRepository) AppendReversal(ctx context.Context, reversal *models.Payment, originalID string, enrollment *models.StudentEnrollment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reversal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPaymentTx(ctx, tx, reversal); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = $2, reversed_by = $3 WHERE id = $1 AND status = $4",
		originalID, models.PaymentStatusReversed, reversal.ID, models.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("mark payment reversed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "payment already reversed")
	}

	if err := saveEnrollmentTx(ctx, tx, enrollment); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reversal tx: %w", err)
	}
	return nil
}

func insertPaymentTx(ctx context.Context, ext sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO payments (id, receipt_no, enrollment_id, academic_year_id, total_amount, payment_date,
        method, status, collected_by, remarks, reversal_of, reversed_by, student, academic_year, items, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := ext.ExecContext(ctx, query,
		payment.ID, payment.ReceiptNo, payment.EnrollmentID, payment.AcademicYearID, payment.TotalAmount,
		payment.PaymentDate, payment.Method, payment.Status, payment.CollectedBy, payment.Remarks,
		payment.ReversalOf, payment.ReversedBy, payment.Student, payment.AcademicYear, payment.Items,
		payment.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrReceiptCollision, "receipt number already used for academic year")
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// CollectionSummary aggregates completed payments over a date range grouped
// by the requested dimension. Reversal pairs cancel out of the totals because
// reversal entries carry negated amounts.
func (r *PaymentRepository) CollectionSummary(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) ([]models.CollectionSummaryRow, error) {
	var groupExpr string
	switch groupBy {
	case models.GroupByMethod:
		groupExpr = "p.method"
	case models.GroupByCollector:
		groupExpr = "p.collected_by"
	case models.GroupByClass:
		groupExpr = "e.class->>'name'"
	case models.GroupByDay:
		groupExpr = "TO_CHAR(p.payment_date, 'YYYY-MM-DD')"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported group_by dimension")
	}

	query := fmt.Sprintf(`SELECT %s AS group_key, COUNT(*) AS payment_count, COALESCE(SUM(p.total_amount), 0) AS total_amount
        FROM payments p
        JOIN student_enrollments e ON e.id = p.enrollment_id
        WHERE p.payment_date >= $1 AND p.payment_date <= $2
        GROUP BY %s ORDER BY total_amount DESC`, groupExpr, groupExpr)

	var rows []models.CollectionSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("collection summary: %w", err)
	}
	return rows, nil
}

// Outstanding returns dues per enrollment, optionally narrowed to one class.
func (r *PaymentRepository) Outstanding(ctx context.Context, classID string) ([]models.OutstandingRow, error) {
	query := `SELECT e.id AS enrollment_id, e.student->>'full_name' AS student_name,
        e.student->>'admission_no' AS admission_no, e.class->>'name' AS class_name,
        e.fee_status->>'status' AS status,
        (e.totals->'net_amount'->>'total')::numeric AS net_total,
        (e.totals->'fees'->>'paid')::numeric AS paid,
        (e.totals->'net_amount'->>'due')::numeric AS due
        FROM student_enrollments e
        WHERE e.is_active = TRUE AND (e.totals->'net_amount'->>'due')::numeric > 0`
	args := []interface{}{}
	if classID != "" {
		query += " AND e.class_id = $1"
		args = append(args, classID)
	}
	query += " ORDER BY due DESC"

	var rows []models.OutstandingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("outstanding report: %w", err)
	}
	return rows, nil
}
