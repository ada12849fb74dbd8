package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptSequenceNext(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReceiptSequenceRepository(db)

	rows := sqlmock.NewRows([]string{"last_number"}).AddRow(int64(42))
	mock.ExpectQuery("INSERT INTO receipt_sequences").
		WithArgs("year-1").
		WillReturnRows(rows)

	next, err := repo.Next(context.Background(), "year-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptSequenceCurrentUnseeded(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReceiptSequenceRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(last_number), 0) FROM receipt_sequences WHERE academic_year_id = $1")).
		WithArgs("year-1").
		WillReturnRows(rows)

	current, err := repo.Current(context.Background(), "year-1")
	require.NoError(t, err)
	assert.Zero(t, current)
	assert.NoError(t, mock.ExpectationsWereMet())
}
