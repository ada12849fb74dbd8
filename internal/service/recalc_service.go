package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/jobs"
)

type activeEnrollmentLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type ledgerReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

type jobStatusStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type recalcMetrics interface {
	RecalculationRun()
}

const recalcJobKeyPrefix = "recalc:job:"

// RecalcService rederives enrollment paid amounts and totals from the payment
// ledger. The ledger is the source of truth; whatever the enrollment document
// says before a recalculation is discarded.
type RecalcService struct {
	enrollments enrollmentRepository
	active      activeEnrollmentLister
	ledger      ledgerReader
	status      jobStatusStore
	locker      *EnrollmentLocker
	metrics     recalcMetrics
	statusTTL   time.Duration
	logger      *zap.Logger

	queue *jobs.Queue
	mu    sync.Mutex

	// statusMu serializes the read-increment-write cycle on job status so
	// concurrent workers never lose a progress update.
	statusMu sync.Mutex
}

// NewRecalcService constructs RecalcService. metrics and status may be nil;
// without a status store RecalculateAll reports job progress as unavailable.
func NewRecalcService(enrollments enrollmentRepository, active activeEnrollmentLister, ledger ledgerReader, status jobStatusStore, locker *EnrollmentLocker, metrics recalcMetrics, statusTTL time.Duration, logger *zap.Logger) *RecalcService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewEnrollmentLocker()
	}
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	return &RecalcService{
		enrollments: enrollments,
		active:      active,
		ledger:      ledger,
		status:      status,
		locker:      locker,
		metrics:     metrics,
		statusTTL:   statusTTL,
		logger:      logger,
	}
}

// StartWorkers wires the background queue for school-wide runs. Call once at
// startup; Stop drains it on shutdown.
func (s *RecalcService) StartWorkers(ctx context.Context, cfg jobs.QueueConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = jobs.NewQueue("recalc", s.handleJob, cfg)
	s.queue.Start(ctx)
}

// Stop shuts the background queue down.
func (s *RecalcService) Stop() {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue != nil {
		queue.Stop()
	}
}

// Recalculate rebuilds one enrollment from its full ledger and saves it. The
// operation is idempotent: replaying an unchanged ledger writes the same
// numbers. Corrupted paid amounts on the document are repaired because the
// document values are never read, only overwritten.
func (s *RecalcService) Recalculate(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	unlock := s.locker.Lock(enrollmentID)
	defer unlock()
	return s.recalculateLocked(ctx, enrollmentID)
}

func (s *RecalcService) recalculateLocked(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	payments, err := s.ledger.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment ledger")
	}

	// Reversal entries carry negated amounts, so summing every entry in the
	// ledger cancels reversed payments without any special casing.
	paidByLine := make(map[string]decimal.Decimal)
	var lastPayment *time.Time
	for i := range payments {
		p := payments[i]
		for _, item := range p.Items {
			paidByLine[item.FeeID] = paidByLine[item.FeeID].Add(item.Amount)
		}
		if p.Status == models.PaymentStatusCompleted {
			d := p.PaymentDate
			if lastPayment == nil || d.After(*lastPayment) {
				lastPayment = &d
			}
		}
	}

	for i := range enrollment.Fees {
		line := &enrollment.Fees[i]
		paid, ok := paidByLine[line.FeeItemID]
		if !ok {
			paid = decimal.Zero
		}
		if paid.IsNegative() {
			s.logger.Warn("ledger sums negative for fee line",
				zap.String("enrollment_id", enrollmentID),
				zap.String("fee_id", line.FeeItemID),
				zap.String("sum", paid.String()))
			paid = decimal.Zero
		}
		line.AmountPaid = paid
		delete(paidByLine, line.FeeItemID)
	}
	for feeID, paid := range paidByLine {
		if !paid.IsZero() {
			s.logger.Warn("ledger references unknown fee line",
				zap.String("enrollment_id", enrollmentID),
				zap.String("fee_id", feeID),
				zap.String("sum", paid.String()))
		}
	}

	enrollment.FeeStatus.LastPaymentDate = lastPayment
	enrollment.RecomputeTotals()

	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecalculationRun()
	}
	return enrollment, nil
}

// RecalculateBatch processes the given enrollments one by one. A failure is
// recorded and the batch moves on; partial progress is never rolled back.
func (s *RecalcService) RecalculateBatch(ctx context.Context, enrollmentIDs []string) (*models.RecalcBatchResult, error) {
	if len(enrollmentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no enrollments to recalculate")
	}

	result := &models.RecalcBatchResult{}
	for _, id := range enrollmentIDs {
		if ctx.Err() != nil {
			return result, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "batch recalculation interrupted")
		}
		if _, err := s.Recalculate(ctx, id); err != nil {
			result.Failed = append(result.Failed, models.RecalcFailure{EnrollmentID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	s.logger.Info("batch recalculation finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

type recalcJobPayload struct {
	JobID        string
	EnrollmentID string
}

// RecalculateAll enqueues a school-wide recalculation of every active
// enrollment and returns immediately with a job id to poll.
func (s *RecalcService) RecalculateAll(ctx context.Context) (*models.RecalcJobStatus, error) {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "recalculation workers are not running")
	}

	ids, err := s.active.ListActiveIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	status := &models.RecalcJobStatus{
		JobID:     uuid.NewString(),
		Total:     len(ids),
		StartedAt: time.Now(),
	}
	if len(ids) == 0 {
		now := time.Now()
		status.Done = true
		status.CompletedAt = &now
	}
	if err := s.saveStatus(ctx, status); err != nil {
		return nil, err
	}
	if status.Done {
		return status, nil
	}

	for _, id := range ids {
		job := jobs.Job{
			ID:   status.JobID + ":" + id,
			Type: "recalc.enrollment",
			Payload: recalcJobPayload{
				JobID:        status.JobID,
				EnrollmentID: id,
			},
		}
		if err := queue.Enqueue(job); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue recalculation")
		}
	}
	s.logger.Info("school-wide recalculation started",
		zap.String("job_id", status.JobID),
		zap.Int("total", status.Total))
	return status, nil
}

// JobStatus returns the progress of an asynchronous run.
func (s *RecalcService) JobStatus(ctx context.Context, jobID string) (*models.RecalcJobStatus, error) {
	if s.status == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "job status store is not configured")
	}
	var status models.RecalcJobStatus
	if err := s.status.Get(ctx, recalcJobKeyPrefix+jobID, &status); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recalculation job not found")
	}
	return &status, nil
}

func (s *RecalcService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(recalcJobPayload)
	if !ok {
		s.logger.Error("unexpected recalc job payload", zap.String("job_id", job.ID))
		return nil
	}

	// Failures are recorded on the job status rather than retried, so each
	// enrollment advances the progress counter exactly once.
	_, err := s.Recalculate(ctx, payload.EnrollmentID)
	if err != nil {
		s.logger.Warn("recalculation failed",
			zap.String("enrollment_id", payload.EnrollmentID), zap.Error(err))
	}
	s.advanceStatus(ctx, payload, err)
	return nil
}

func (s *RecalcService) advanceStatus(ctx context.Context, payload recalcJobPayload, runErr error) {
	if s.status == nil {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	var status models.RecalcJobStatus
	if err := s.status.Get(ctx, recalcJobKeyPrefix+payload.JobID, &status); err != nil {
		return
	}
	status.Processed++
	if runErr != nil {
		status.Failed++
	}
	if status.Processed >= status.Total {
		now := time.Now()
		status.Done = true
		status.CompletedAt = &now
	}
	if err := s.saveStatus(ctx, &status); err != nil {
		s.logger.Warn("failed to update recalc job status",
			zap.String("job_id", payload.JobID), zap.Error(err))
	}
	if status.Done {
		s.logger.Info("school-wide recalculation finished",
			zap.String("job_id", payload.JobID),
			zap.Int("processed", status.Processed),
			zap.Int("failed", status.Failed))
	}
}

func (s *RecalcService) saveStatus(ctx context.Context, status *models.RecalcJobStatus) error {
	if s.status == nil {
		return nil
	}
	if err := s.status.Set(ctx, recalcJobKeyPrefix+status.JobID, status, s.statusTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist job status")
	}
	return nil
}
