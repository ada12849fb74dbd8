package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

func testPayment() *models.Payment {
	return &models.Payment{
		ReceiptNo:      "RCP-2026-2027-000001",
		EnrollmentID:   "enr-1",
		AcademicYearID: "year-1",
		TotalAmount:    decimal.NewFromInt(600),
		PaymentDate:    time.Now(),
		Method:         models.PaymentMethodCash,
		Status:         models.PaymentStatusCompleted,
		CollectedBy:    "u1",
		Items:          models.PaymentItems{{FeeID: "f1", Amount: decimal.NewFromInt(600)}},
	}
}

func TestPaymentRepositoryAppendWithEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_enrollments SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := testPayment()
	enrollment := &models.StudentEnrollment{ID: "enr-1", Version: 1, IsActive: true}
	require.NoError(t, repo.AppendWithEnrollment(context.Background(), payment, enrollment))
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, 2, enrollment.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAppendRollsBackOnStaleEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_enrollments SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AppendWithEnrollment(context.Background(), testPayment(), &models.StudentEnrollment{ID: "enr-1", Version: 1})
	require.Error(t, err)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrStaleVersion.Code, typed.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAppendReversal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_enrollments SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reversal := testPayment()
	reversal.Status = models.PaymentStatusReversal
	reversal.TotalAmount = decimal.NewFromInt(-600)
	enrollment := &models.StudentEnrollment{ID: "enr-1", Version: 2, IsActive: true}
	require.NoError(t, repo.AppendReversal(context.Background(), reversal, "pay-1", enrollment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAppendReversalAlreadyReversed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	reversal := testPayment()
	reversal.Status = models.PaymentStatusReversal
	err := repo.AppendReversal(context.Background(), reversal, "pay-1", &models.StudentEnrollment{ID: "enr-1", Version: 2})
	require.Error(t, err)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrConflict.Code, typed.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
