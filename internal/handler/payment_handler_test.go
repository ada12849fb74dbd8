package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/middleware"
	"github.com/noah-isme/sma-fee-api/internal/models"
	"github.com/noah-isme/sma-fee-api/internal/service"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type paymentServiceMock struct {
	payment    *models.Payment
	payments   []models.Payment
	pagination *models.Pagination
	receipt    []byte
	err        error

	collected service.CollectPaymentRequest
	collector string
	reversed  string
}

func (m *paymentServiceMock) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.payments, m.pagination, nil
}

func (m *paymentServiceMock) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.payments, nil
}

func (m *paymentServiceMock) Get(ctx context.Context, id string) (*models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func (m *paymentServiceMock) Collect(ctx context.Context, req service.CollectPaymentRequest, collectedBy string) (*models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.collected = req
	m.collector = collectedBy
	return m.payment, nil
}

func (m *paymentServiceMock) Reverse(ctx context.Context, paymentID string, req service.ReversePaymentRequest, reversedBy string) (*models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.reversed = paymentID
	return m.payment, nil
}

func (m *paymentServiceMock) Receipt(ctx context.Context, paymentID string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.receipt, nil
}

func newTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func samplePayment() *models.Payment {
	return &models.Payment{
		ID:           "pay-1",
		ReceiptNo:    "RCP-2026-2027-000001",
		EnrollmentID: "enr-1",
		TotalAmount:  decimal.RequireFromString("500"),
		PaymentDate:  time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		Method:       models.PaymentMethodCash,
		Status:       models.PaymentStatusCompleted,
		CollectedBy:  "user-1",
	}
}

func TestPaymentHandlerCollect(t *testing.T) {
	mock := &paymentServiceMock{payment: samplePayment()}
	h := NewPaymentHandler(mock)

	body, _ := json.Marshal(map[string]any{
		"enrollment_id": "enr-1",
		"method":        "CASH",
		"items":         []map[string]any{{"fee_id": "fee-1", "amount": "500"}},
	})
	c, w := newTestContext(t, http.MethodPost, "/payments", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})

	h.Collect(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"receipt_no":"RCP-2026-2027-000001"`)
	assert.Equal(t, "enr-1", mock.collected.EnrollmentID)
	assert.Equal(t, "user-1", mock.collector)
}

func TestPaymentHandlerCollectInvalidBody(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceMock{})
	c, w := newTestContext(t, http.MethodPost, "/payments", []byte(`not json`))

	h.Collect(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandlerCollectServiceError(t *testing.T) {
	mock := &paymentServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "allocation exceeds amount due")}
	h := NewPaymentHandler(mock)

	body, _ := json.Marshal(map[string]any{
		"enrollment_id": "enr-1",
		"method":        "CASH",
		"items":         []map[string]any{{"fee_id": "fee-1", "amount": "9999"}},
	})
	c, w := newTestContext(t, http.MethodPost, "/payments", body)

	h.Collect(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "allocation exceeds amount due")
}

func TestPaymentHandlerReverse(t *testing.T) {
	reversal := samplePayment()
	reversal.ID = "pay-2"
	reversal.Status = models.PaymentStatusReversal
	mock := &paymentServiceMock{payment: reversal}
	h := NewPaymentHandler(mock)

	body, _ := json.Marshal(map[string]string{"remarks": "cashier keyed the wrong student"})
	c, w := newTestContext(t, http.MethodPost, "/payments/pay-1/reverse", body)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-2", Role: models.RoleAdmin})

	h.Reverse(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pay-1", mock.reversed)
	assert.Contains(t, w.Body.String(), string(models.PaymentStatusReversal))
}

func TestPaymentHandlerGetNotFound(t *testing.T) {
	mock := &paymentServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "payment not found")}
	h := NewPaymentHandler(mock)

	c, w := newTestContext(t, http.MethodGet, "/payments/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandlerReceipt(t *testing.T) {
	mock := &paymentServiceMock{payment: samplePayment(), receipt: []byte("%PDF-1.4 fake")}
	h := NewPaymentHandler(mock)

	c, w := newTestContext(t, http.MethodGet, "/payments/pay-1/receipt", nil)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	h.Receipt(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "RCP-2026-2027-000001.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestPaymentHandlerLedger(t *testing.T) {
	mock := &paymentServiceMock{payments: []models.Payment{*samplePayment()}}
	h := NewPaymentHandler(mock)

	c, w := newTestContext(t, http.MethodGet, "/enrollments/enr-1/payments", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	h.Ledger(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pay-1"`)
}
