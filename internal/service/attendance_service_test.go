package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string][]models.Attendance
}

func (m *mockAttendanceRepo) ExistsForDate(ctx context.Context, registrationID string, date time.Time) (bool, error) {
	for _, r := range m.records[registrationID] {
		if r.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceRepo) Create(ctx context.Context, record *models.Attendance) error {
	if m.records == nil {
		m.records = make(map[string][]models.Attendance)
	}
	m.records[record.RegistrationID] = append(m.records[record.RegistrationID], *record)
	return nil
}

func (m *mockAttendanceRepo) ListByRegistration(ctx context.Context, registrationID string) ([]models.Attendance, error) {
	return m.records[registrationID], nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, registrationID string) (*models.AttendanceSummary, error) {
	summary := &models.AttendanceSummary{RegistrationID: registrationID}
	for _, r := range m.records[registrationID] {
		summary.Total++
		switch r.Status {
		case models.AttendancePresent:
			summary.Present++
		case models.AttendanceAbsent:
			summary.Absent++
		case models.AttendanceExcused:
			summary.Excused++
		}
	}
	return summary, nil
}

func attendanceFixture() (*mockAttendanceRepo, *AttendanceService) {
	repo := &mockAttendanceRepo{}
	regs := &mockRegistrationStore{registrations: map[string]models.Registration{
		"reg-1": {ID: "reg-1", Trimester: models.TrimesterFall},
	}}
	return repo, NewAttendanceService(repo, regs, nil, nil)
}

func TestAttendanceRecord(t *testing.T) {
	repo, svc := attendanceFixture()

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{
		RegistrationID: "reg-1", Date: "2026-09-15", Status: "PRESENT",
	}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, record.Status)
	assert.Equal(t, "actor-admin", record.RecordedBy)
	assert.Len(t, repo.records["reg-1"], 1)
}

func TestAttendanceRecordDuplicateDate(t *testing.T) {
	_, svc := attendanceFixture()

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		RegistrationID: "reg-1", Date: "2026-09-15", Status: "PRESENT",
	}, adminActor())
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), RecordAttendanceRequest{
		RegistrationID: "reg-1", Date: "2026-09-15", Status: "ABSENT",
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeConflict, appErrors.FromError(err).Type)
}

func TestAttendanceRecordUnknownRegistration(t *testing.T) {
	_, svc := attendanceFixture()

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		RegistrationID: "missing", Date: "2026-09-15", Status: "PRESENT",
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeNotFound, appErrors.FromError(err).Type)
}

func TestAttendanceRecordRejectsBadStatus(t *testing.T) {
	_, svc := attendanceFixture()

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		RegistrationID: "reg-1", Date: "2026-09-15", Status: "LATE",
	}, adminActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.TypeValidation, appErrors.FromError(err).Type)
}

func TestAttendanceSummarize(t *testing.T) {
	_, svc := attendanceFixture()

	for i, status := range []string{"PRESENT", "PRESENT", "ABSENT", "EXCUSED"} {
		date := time.Date(2026, 9, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		_, err := svc.Record(context.Background(), RecordAttendanceRequest{
			RegistrationID: "reg-1", Date: date, Status: status,
		}, adminActor())
		require.NoError(t, err)
	}

	summary, err := svc.Summarize(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 1, summary.Excused)
	assert.Equal(t, 4, summary.Total)
}
