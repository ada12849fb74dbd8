package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	AppendWithEnrollment(ctx context.Context, payment *models.Payment, enrollment *models.StudentEnrollment) error
	AppendReversal(ctx context.Context, reversal *models.Payment, originalID string, enrollment *models.StudentEnrollment) error
}

type receiptSequencer interface {
	Next(ctx context.Context, academicYearID string) (int64, error)
}

type paymentMetrics interface {
	PaymentCollected(method models.PaymentMethod, amount decimal.Decimal)
	PaymentReversed(amount decimal.Decimal)
}

// PaymentAllocationInput allocates part of a payment to one fee line.
type PaymentAllocationInput struct {
	FeeID  string          `json:"fee_id" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// CollectPaymentRequest records a payment against an enrollment. Every
// allocation must target an existing fee line and must not exceed that line's
// remaining due. ReceiptNo is normally left empty and sequenced per academic
// year; migrated payments supply their historical number instead.
type CollectPaymentRequest struct {
	EnrollmentID string                   `json:"enrollment_id" validate:"required"`
	ReceiptNo    string                   `json:"receipt_no"`
	Method       models.PaymentMethod     `json:"method" validate:"required"`
	PaymentDate  *time.Time               `json:"payment_date,omitempty"`
	Items        []PaymentAllocationInput `json:"items" validate:"required,min=1"`
	Remarks      string                   `json:"remarks"`
}

// ReversePaymentRequest reverses a completed payment.
type ReversePaymentRequest struct {
	Remarks string `json:"remarks" validate:"required"`
}

// PaymentService records payments against enrollments and keeps the
// append-only ledger and the enrollment document consistent in one
// transaction.
type PaymentService struct {
	payments    paymentRepository
	enrollments enrollmentRepository
	sequences   receiptSequencer
	locker      *EnrollmentLocker
	metrics     paymentMetrics
	receipts    *export.ReceiptRenderer
	prefix      string
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs PaymentService. metrics may be nil.
func NewPaymentService(payments paymentRepository, enrollments enrollmentRepository, sequences receiptSequencer, locker *EnrollmentLocker, metrics paymentMetrics, receipts *export.ReceiptRenderer, receiptPrefix string, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewEnrollmentLocker()
	}
	if receiptPrefix == "" {
		receiptPrefix = "RCP"
	}
	return &PaymentService{
		payments:    payments,
		enrollments: enrollments,
		sequences:   sequences,
		locker:      locker,
		metrics:     metrics,
		receipts:    receipts,
		prefix:      receiptPrefix,
		validator:   validate,
		logger:      logger,
	}
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByEnrollment returns the full ledger for one enrollment, oldest first.
func (s *PaymentService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Get returns a single payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Collect records a payment. The ledger entry and the enrollment update are
// written in one transaction, so a crash can never leave the paid amounts out
// of sync with the ledger.
func (s *PaymentService) Collect(ctx context.Context, req CollectPaymentRequest, collectedBy string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	unlock := s.locker.Lock(req.EnrollmentID)
	defer unlock()

	enrollment, err := s.loadEnrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !enrollment.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is inactive")
	}

	paymentDate := time.Now()
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	items, err := s.applyAllocations(enrollment, req.Items)
	if err != nil {
		return nil, err
	}
	enrollment.RecomputeTotals()
	enrollment.FeeStatus.LastPaymentDate = &paymentDate

	receiptNo := req.ReceiptNo
	if receiptNo == "" {
		receiptNo, err = s.nextReceiptNo(ctx, enrollment)
		if err != nil {
			return nil, err
		}
	}

	payment := &models.Payment{
		ReceiptNo:      receiptNo,
		EnrollmentID:   enrollment.ID,
		AcademicYearID: enrollment.AcademicYearID,
		TotalAmount:    models.PaymentItems(items).Sum(),
		PaymentDate:    paymentDate,
		Method:         req.Method,
		Status:         models.PaymentStatusCompleted,
		CollectedBy:    collectedBy,
		Remarks:        req.Remarks,
		Student:        enrollment.Student,
		AcademicYear:   enrollment.AcademicYear,
		Items:          items,
	}

	if err := s.payments.AppendWithEnrollment(ctx, payment, enrollment); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentCollected(payment.Method, payment.TotalAmount)
	}
	s.logger.Info("payment collected",
		zap.String("payment_id", payment.ID),
		zap.String("receipt_no", payment.ReceiptNo),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("amount", payment.TotalAmount.String()))
	return payment, nil
}

// applyAllocations validates each allocation against the enrollment's fee
// lines and applies it, capturing each line's remaining due as the receipt
// balance. Validation is all-or-nothing: any bad allocation rejects the whole
// payment before a single line is touched.
func (s *PaymentService) applyAllocations(enrollment *models.StudentEnrollment, inputs []PaymentAllocationInput) (models.PaymentItems, error) {
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		if !input.Amount.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "allocation amount must be positive")
		}
		if seen[input.FeeID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate allocation for fee line: "+input.FeeID)
		}
		seen[input.FeeID] = true

		idx := enrollment.Fees.ByFeeItemID(input.FeeID)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee line not found on enrollment: "+input.FeeID)
		}
		line := enrollment.Fees[idx]
		due := maxLineDue(line)
		if input.Amount.GreaterThan(due) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("allocation %s exceeds remaining due %s for %s", input.Amount, due, line.TemplateName))
		}
	}

	items := make(models.PaymentItems, 0, len(inputs))
	for _, input := range inputs {
		idx := enrollment.Fees.ByFeeItemID(input.FeeID)
		line := &enrollment.Fees[idx]
		line.AmountPaid = line.AmountPaid.Add(input.Amount)
		items = append(items, models.PaymentItem{
			FeeID:           line.FeeItemID,
			FeeTemplateID:   line.TemplateID,
			FeeTemplateName: line.TemplateName,
			Amount:          input.Amount,
			FeeBalance:      maxLineDue(*line),
		})
	}
	return items, nil
}

// Reverse appends a reversal ledger entry with negated amounts, rolls the
// paid amounts back on the enrollment and flips the original entry to
// REVERSED, all in one transaction. Ledger rows are never deleted.
func (s *PaymentService) Reverse(ctx context.Context, paymentID string, req ReversePaymentRequest, reversedBy string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reversal payload")
	}

	original, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if original.Status != models.PaymentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only completed payments can be reversed")
	}

	unlock := s.locker.Lock(original.EnrollmentID)
	defer unlock()

	enrollment, err := s.loadEnrollment(ctx, original.EnrollmentID)
	if err != nil {
		return nil, err
	}

	items := make(models.PaymentItems, 0, len(original.Items))
	for _, item := range original.Items {
		idx := enrollment.Fees.ByFeeItemID(item.FeeID)
		if idx < 0 {
			// The fee line disappeared since the payment. The ledger entry is
			// still reversed; the paid amount on that line is already gone.
			s.logger.Warn("reversal target fee line missing",
				zap.String("payment_id", original.ID),
				zap.String("fee_id", item.FeeID))
			items = append(items, models.PaymentItem{
				FeeID:           item.FeeID,
				FeeTemplateID:   item.FeeTemplateID,
				FeeTemplateName: item.FeeTemplateName,
				Amount:          item.Amount.Neg(),
				FeeBalance:      decimal.Zero,
			})
			continue
		}
		line := &enrollment.Fees[idx]
		line.AmountPaid = maxZeroDecimal(line.AmountPaid.Sub(item.Amount))
		items = append(items, models.PaymentItem{
			FeeID:           line.FeeItemID,
			FeeTemplateID:   line.TemplateID,
			FeeTemplateName: line.TemplateName,
			Amount:          item.Amount.Neg(),
			FeeBalance:      maxLineDue(*line),
		})
	}
	enrollment.RecomputeTotals()

	receiptNo, err := s.nextReceiptNo(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	originalID := original.ID
	reversal := &models.Payment{
		ReceiptNo:      receiptNo,
		EnrollmentID:   enrollment.ID,
		AcademicYearID: original.AcademicYearID,
		TotalAmount:    original.TotalAmount.Neg(),
		PaymentDate:    time.Now(),
		Method:         original.Method,
		Status:         models.PaymentStatusReversal,
		CollectedBy:    reversedBy,
		Remarks:        req.Remarks,
		ReversalOf:     &originalID,
		Student:        original.Student,
		AcademicYear:   original.AcademicYear,
		Items:          items,
	}

	if err := s.payments.AppendReversal(ctx, reversal, original.ID, enrollment); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentReversed(original.TotalAmount)
	}
	s.logger.Info("payment reversed",
		zap.String("payment_id", original.ID),
		zap.String("reversal_id", reversal.ID),
		zap.String("enrollment_id", enrollment.ID))
	return reversal, nil
}

// Receipt renders the payment's PDF receipt from its denormalized snapshots.
func (s *PaymentService) Receipt(ctx context.Context, paymentID string) ([]byte, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	className := ""
	if enrollment, err := s.enrollments.FindByID(ctx, payment.EnrollmentID); err == nil {
		className = enrollment.Class.Name
		if enrollment.Class.Section != "" {
			className += " " + enrollment.Class.Section
		}
	}

	lines := make([]export.ReceiptLine, 0, len(payment.Items))
	for _, item := range payment.Items {
		lines = append(lines, export.ReceiptLine{
			FeeName: item.FeeTemplateName,
			Amount:  item.Amount.StringFixed(2),
			Balance: item.FeeBalance.StringFixed(2),
		})
	}

	data := export.ReceiptData{
		ReceiptNo:     payment.ReceiptNo,
		PaymentDate:   payment.PaymentDate.Format("02 Jan 2006"),
		StudentName:   payment.Student.FullName,
		AdmissionNo:   payment.Student.AdmissionNo,
		ClassName:     className,
		AcademicYear:  payment.AcademicYear.Name,
		PaymentMethod: string(payment.Method),
		CollectedBy:   payment.CollectedBy,
		Lines:         lines,
		TotalAmount:   payment.TotalAmount.StringFixed(2),
		Remarks:       payment.Remarks,
		Reversed:      payment.Status != models.PaymentStatusCompleted,
	}

	pdf, err := s.receipts.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}

func (s *PaymentService) loadEnrollment(ctx context.Context, id string) (*models.StudentEnrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *PaymentService) nextReceiptNo(ctx context.Context, enrollment *models.StudentEnrollment) (string, error) {
	seq, err := s.sequences.Next(ctx, enrollment.AcademicYearID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance receipt sequence")
	}
	year := strings.ReplaceAll(enrollment.AcademicYear.Name, "/", "-")
	return fmt.Sprintf("%s-%s-%06d", s.prefix, year, seq), nil
}

func maxLineDue(line models.StudentFee) decimal.Decimal {
	return maxZeroDecimal(line.Amount.Sub(line.AmountPaid))
}

func maxZeroDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
