package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/models"
)

func TestPeriodRepositoryFindCurrent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	rows := sqlmock.NewRows([]string{"id", "trimester", "phase", "is_current", "start_date", "created_at", "updated_at"}).
		AddRow("p1", "winter", "intent", true, time.Now(), time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM periods WHERE is_current = TRUE LIMIT 1").WillReturnRows(rows)

	period, err := repo.FindCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TrimesterWinter, period.Trimester)
	assert.Equal(t, models.PhaseIntent, period.Phase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindCurrentMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM periods WHERE is_current").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPeriodRepositorySetCurrentClearsOthersInOneTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE periods SET is_current = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE periods SET is_current = TRUE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetCurrent(context.Background(), "p2")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetCurrentUnknownID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE periods SET is_current = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE periods SET is_current = TRUE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetCurrent(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
