package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_enrollments WHERE student_id = $1 AND academic_year_id = $2")).
		WithArgs("stu-1", "year-1").
		WillReturnRows(rows)

	exists, err := repo.Exists(context.Background(), "stu-1", "year-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("enr-1").AddRow("enr-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM student_enrollments WHERE is_active = TRUE ORDER BY created_at")).
		WillReturnRows(rows)

	ids, err := repo.ListActiveIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO student_enrollments").WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.StudentEnrollment{StudentID: "stu-1", AcademicYearID: "year-1", ClassID: "class-1", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, 1, enrollment.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySaveBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("UPDATE student_enrollments SET").WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.StudentEnrollment{ID: "enr-1", Version: 3, IsActive: true}
	require.NoError(t, repo.Save(context.Background(), enrollment))
	assert.Equal(t, 4, enrollment.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySaveStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("UPDATE student_enrollments SET").WillReturnResult(sqlmock.NewResult(0, 0))

	enrollment := &models.StudentEnrollment{ID: "enr-1", Version: 3}
	err := repo.Save(context.Background(), enrollment)
	require.Error(t, err)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrStaleVersion.Code, typed.Code)
	assert.Equal(t, 3, enrollment.Version, "version unchanged on stale write")
	assert.NoError(t, mock.ExpectationsWereMet())
}
