package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/jobs"
)

type mockActiveLister struct {
	ids []string
}

func (m *mockActiveLister) ListActiveIDs(ctx context.Context) ([]string, error) {
	return m.ids, nil
}

type mockStatusStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mockStatusStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return assert.AnError
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockStatusStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

// seedLedgeredEnrollment enrolls a student and runs two payments plus one
// reversal through the payment service, so the recalculator sees a realistic
// ledger.
func seedLedgeredEnrollment(t *testing.T) (*mockEnrollmentRepo, *mockPaymentRepo, *models.StudentEnrollment) {
	t.Helper()
	svc, payRepo, enrollRepo, _ := newPaymentFixture(t)
	enrollment := enrollRepo.created
	tuitionID := enrollmentFeeID(enrollment, "t-tuition")
	examID := enrollmentFeeID(enrollment, "t-exam")

	_, err := svc.Collect(context.Background(), CollectPaymentRequest{
		EnrollmentID: enrollment.ID,
		Method:       models.PaymentMethodCash,
		Items:        []PaymentAllocationInput{{FeeID: tuitionID, Amount: dec("600")}},
	}, "cashier")
	require.NoError(t, err)

	mistaken, err := svc.Collect(context.Background(), CollectPaymentRequest{
		EnrollmentID: enrollment.ID,
		Method:       models.PaymentMethodCash,
		Items:        []PaymentAllocationInput{{FeeID: examID, Amount: dec("200")}},
	}, "cashier")
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), mistaken.ID, ReversePaymentRequest{Remarks: "wrong student"}, "accountant")
	require.NoError(t, err)

	return enrollRepo, payRepo, enrollRepo.enrollments[enrollment.ID]
}

func TestRecalcServiceRepairsCorruptedPaidAmounts(t *testing.T) {
	enrollRepo, payRepo, enrollment := seedLedgeredEnrollment(t)

	// Corrupt the document: the ledger, not these numbers, is authoritative.
	corrupted := *enrollment
	corrupted.Fees = append(models.StudentFees(nil), enrollment.Fees...)
	for i := range corrupted.Fees {
		corrupted.Fees[i].AmountPaid = dec("9999")
	}
	enrollRepo.enrollments[enrollment.ID] = &corrupted

	svc := NewRecalcService(enrollRepo, &mockActiveLister{}, payRepo, nil, nil, nil, 0, nil)
	repaired, err := svc.Recalculate(context.Background(), enrollment.ID)
	require.NoError(t, err)

	tuition := repaired.Fees[enrollmentLineIndex(repaired, "t-tuition")]
	assert.True(t, tuition.AmountPaid.Equal(dec("600")))
	// The reversed exam payment nets out of the replayed ledger.
	exam := repaired.Fees[enrollmentLineIndex(repaired, "t-exam")]
	assert.True(t, exam.AmountPaid.IsZero())
	assert.True(t, repaired.Totals.Fees.Paid.Equal(dec("600")))
	assert.Equal(t, models.FeeStatusPartial, repaired.FeeStatus.Status)
}

func TestRecalcServiceIdempotent(t *testing.T) {
	enrollRepo, payRepo, enrollment := seedLedgeredEnrollment(t)
	svc := NewRecalcService(enrollRepo, &mockActiveLister{}, payRepo, nil, nil, nil, 0, nil)

	first, err := svc.Recalculate(context.Background(), enrollment.ID)
	require.NoError(t, err)
	second, err := svc.Recalculate(context.Background(), enrollment.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Totals, second.Totals)
	assert.Equal(t, first.FeeStatus.Status, second.FeeStatus.Status)
}

func TestRecalcServiceLastPaymentFromCompletedOnly(t *testing.T) {
	enrollRepo, payRepo, enrollment := seedLedgeredEnrollment(t)
	svc := NewRecalcService(enrollRepo, &mockActiveLister{}, payRepo, nil, nil, nil, 0, nil)

	repaired, err := svc.Recalculate(context.Background(), enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, repaired.FeeStatus.LastPaymentDate)
}

// seedSameDayPayments collects one payment per named fee line, all on the same
// day, in the given order.
func seedSameDayPayments(t *testing.T, order []string) (*mockEnrollmentRepo, *mockPaymentRepo, *models.StudentEnrollment) {
	t.Helper()
	svc, payRepo, enrollRepo, _ := newPaymentFixture(t)
	enrollment := enrollRepo.created
	day := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	amounts := map[string]decimal.Decimal{"t-tuition": dec("600"), "t-exam": dec("200")}

	for _, tmpl := range order {
		_, err := svc.Collect(context.Background(), CollectPaymentRequest{
			EnrollmentID: enrollment.ID,
			Method:       models.PaymentMethodCash,
			PaymentDate:  &day,
			Items:        []PaymentAllocationInput{{FeeID: enrollmentFeeID(enrollment, tmpl), Amount: amounts[tmpl]}},
		}, "cashier")
		require.NoError(t, err)
	}
	return enrollRepo, payRepo, enrollRepo.enrollments[enrollment.ID]
}

func TestRecalcServiceSameDayPaymentsOrderIndependent(t *testing.T) {
	repoA, payA, enrollA := seedSameDayPayments(t, []string{"t-tuition", "t-exam"})
	repoB, payB, enrollB := seedSameDayPayments(t, []string{"t-exam", "t-tuition"})

	a, err := NewRecalcService(repoA, &mockActiveLister{}, payA, nil, nil, nil, 0, nil).Recalculate(context.Background(), enrollA.ID)
	require.NoError(t, err)
	b, err := NewRecalcService(repoB, &mockActiveLister{}, payB, nil, nil, nil, 0, nil).Recalculate(context.Background(), enrollB.ID)
	require.NoError(t, err)

	for _, tmpl := range []string{"t-tuition", "t-exam"} {
		la := a.Fees[enrollmentLineIndex(a, tmpl)]
		lb := b.Fees[enrollmentLineIndex(b, tmpl)]
		assert.True(t, la.AmountPaid.Equal(lb.AmountPaid), tmpl)
	}
	assert.Equal(t, a.Totals, b.Totals)
	assert.Equal(t, a.FeeStatus.Status, b.FeeStatus.Status)
	require.NotNil(t, a.FeeStatus.LastPaymentDate)
	require.NotNil(t, b.FeeStatus.LastPaymentDate)
	assert.True(t, a.FeeStatus.LastPaymentDate.Equal(*b.FeeStatus.LastPaymentDate))
}

func TestRecalcServiceDistinguishesLookupFailures(t *testing.T) {
	repo := &mockEnrollmentRepo{findErr: assert.AnError}
	svc := NewRecalcService(repo, &mockActiveLister{}, &mockPaymentRepo{}, nil, nil, nil, 0, nil)

	_, err := svc.Recalculate(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	repo.findErr = nil
	_, err = svc.Recalculate(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRecalcServiceBatchPartialFailure(t *testing.T) {
	enrollRepo, payRepo, enrollment := seedLedgeredEnrollment(t)
	svc := NewRecalcService(enrollRepo, &mockActiveLister{}, payRepo, nil, nil, nil, 0, nil)

	result, err := svc.RecalculateBatch(context.Background(), []string{enrollment.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{enrollment.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0].EnrollmentID)
}

func TestRecalcServiceBatchRejectsEmpty(t *testing.T) {
	svc := NewRecalcService(&mockEnrollmentRepo{}, &mockActiveLister{}, &mockPaymentRepo{}, nil, nil, nil, 0, nil)
	_, err := svc.RecalculateBatch(context.Background(), nil)
	require.Error(t, err)
}

func TestRecalcServiceRecalculateAll(t *testing.T) {
	enrollRepo, payRepo, enrollment := seedLedgeredEnrollment(t)
	status := &mockStatusStore{}
	svc := NewRecalcService(enrollRepo, &mockActiveLister{ids: []string{enrollment.ID, "missing"}}, payRepo, status, nil, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx, jobs.QueueConfig{Workers: 2})
	defer svc.Stop()

	job, err := svc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total)

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := svc.JobStatus(context.Background(), job.JobID)
		require.NoError(t, err)
		if current.Done {
			assert.Equal(t, 2, current.Processed)
			assert.Equal(t, 1, current.Failed)
			require.NotNil(t, current.CompletedAt)
			break
		}
		require.True(t, time.Now().Before(deadline), "recalculation did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRecalcServiceRecalculateAllWithoutWorkers(t *testing.T) {
	svc := NewRecalcService(&mockEnrollmentRepo{}, &mockActiveLister{}, &mockPaymentRepo{}, nil, nil, nil, 0, nil)
	_, err := svc.RecalculateAll(context.Background())
	require.Error(t, err)
}

func TestRecalcServiceRecalculateAllEmptySchool(t *testing.T) {
	status := &mockStatusStore{}
	svc := NewRecalcService(&mockEnrollmentRepo{}, &mockActiveLister{}, &mockPaymentRepo{}, status, nil, nil, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx, jobs.QueueConfig{Workers: 1})
	defer svc.Stop()

	job, err := svc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.True(t, job.Done)
	assert.Zero(t, job.Total)
}
