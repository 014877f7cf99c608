package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/models"
)

func TestAttendanceRepositoryExistsForDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT 1 FROM attendance WHERE registration_id").
		WithArgs("reg-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForDate(context.Background(), "reg-1", date)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAttendanceRepositorySummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"registration_id", "present", "absent", "excused", "total"}).
		AddRow("reg-1", 8, 1, 1, 10)
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE registration_id").
		WithArgs("reg-1").
		WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Present)
	assert.Equal(t, 10, summary.Total)
}

func TestAttendanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Attendance{
		RegistrationID: "reg-1",
		Date:           time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Status:         models.AttendancePresent,
		RecordedBy:     "instructor@x.com",
	}
	err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
