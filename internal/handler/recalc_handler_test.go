package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type recalcServiceMock struct {
	enrollment *models.StudentEnrollment
	batch      *models.RecalcBatchResult
	status     *models.RecalcJobStatus
	err        error

	recalculated string
	batchIDs     []string
}

func (m *recalcServiceMock) Recalculate(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.recalculated = enrollmentID
	return m.enrollment, nil
}

func (m *recalcServiceMock) RecalculateBatch(ctx context.Context, enrollmentIDs []string) (*models.RecalcBatchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.batchIDs = enrollmentIDs
	return m.batch, nil
}

func (m *recalcServiceMock) RecalculateAll(ctx context.Context) (*models.RecalcJobStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func (m *recalcServiceMock) JobStatus(ctx context.Context, jobID string) (*models.RecalcJobStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func TestRecalcHandlerRecalculate(t *testing.T) {
	mock := &recalcServiceMock{enrollment: &models.StudentEnrollment{ID: "enr-1", FeeStatus: models.FeeStatus{Status: models.FeeStatusPartial}}}
	h := NewRecalcHandler(mock)

	c, w := newTestContext(t, http.MethodPost, "/enrollments/enr-1/recalculate", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	h.Recalculate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "enr-1", mock.recalculated)
	assert.Contains(t, w.Body.String(), string(models.FeeStatusPartial))
}

func TestRecalcHandlerRecalculateNotFound(t *testing.T) {
	mock := &recalcServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")}
	h := NewRecalcHandler(mock)

	c, w := newTestContext(t, http.MethodPost, "/enrollments/missing/recalculate", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Recalculate(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecalcHandlerBatch(t *testing.T) {
	mock := &recalcServiceMock{batch: &models.RecalcBatchResult{Succeeded: []string{"enr-1", "enr-2"}}}
	h := NewRecalcHandler(mock)

	body, _ := json.Marshal(BatchRequest{EnrollmentIDs: []string{"enr-1", "enr-2"}})
	c, w := newTestContext(t, http.MethodPost, "/recalculations/batch", body)

	h.Batch(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"enr-1", "enr-2"}, mock.batchIDs)
}

func TestRecalcHandlerBatchInvalidBody(t *testing.T) {
	h := NewRecalcHandler(&recalcServiceMock{})
	c, w := newTestContext(t, http.MethodPost, "/recalculations/batch", []byte(`{`))

	h.Batch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecalcHandlerAll(t *testing.T) {
	mock := &recalcServiceMock{status: &models.RecalcJobStatus{JobID: "job-1", Total: 42, StartedAt: time.Now()}}
	h := NewRecalcHandler(mock)

	c, w := newTestContext(t, http.MethodPost, "/recalculations", nil)

	h.All(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"job-1"`)
}

func TestRecalcHandlerStatus(t *testing.T) {
	mock := &recalcServiceMock{status: &models.RecalcJobStatus{JobID: "job-1", Total: 2, Processed: 2, Done: true, StartedAt: time.Now()}}
	h := NewRecalcHandler(mock)

	c, w := newTestContext(t, http.MethodGet, "/recalculations/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"done":true`)
}
