package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetRowRoundTrip(t *testing.T) {
	start := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	in := validInput()
	in.RegistrationType = "group"
	in.ClassID = "c1"
	in.ClassTitle = "Chamber Ensemble"
	in.Instrument = "violin"
	in.RoomID = "room-4"
	in.ExpectedStartDate = &start
	reg, err := NewRegistration(in)
	require.NoError(t, err)
	reg.UpdateIntent(IntentChange, "parent@x.com")

	row := reg.SheetRow()
	require.Len(t, row, SheetColumnCount)

	got := RegistrationFromSheetRow(row)
	require.NotNil(t, got)
	assert.Equal(t, reg.ID, got.ID)
	assert.Equal(t, reg.StudentID, got.StudentID)
	assert.Equal(t, reg.InstructorID, got.InstructorID)
	assert.Equal(t, reg.Day, got.Day)
	assert.Equal(t, reg.StartTime, got.StartTime)
	require.NotNil(t, got.Length)
	assert.Equal(t, *reg.Length, *got.Length)
	assert.Equal(t, reg.RegistrationType, got.RegistrationType)
	assert.Equal(t, reg.ClassID, got.ClassID)
	assert.Equal(t, reg.ReenrollmentIntent, got.ReenrollmentIntent)
	require.NotNil(t, got.ExpectedStartDate)
	assert.True(t, got.ExpectedStartDate.Equal(start))
}

func TestRegistrationFromSheetRowSkipsHeaderAndBlank(t *testing.T) {
	assert.Nil(t, RegistrationFromSheetRow(nil))
	assert.Nil(t, RegistrationFromSheetRow([]string{}))
	assert.Nil(t, RegistrationFromSheetRow([]string{""}))
	assert.Nil(t, RegistrationFromSheetRow([]string{"Id", "StudentId"}))
	assert.Nil(t, RegistrationFromSheetRow([]string{"id"}))
	assert.Nil(t, RegistrationFromSheetRow([]string{"registrationId"}))
	assert.Nil(t, RegistrationFromSheetRow([]string{"not-a-uuid", "s1"}))
}

func TestRegistrationFromSheetRowToleratesShortRows(t *testing.T) {
	got := RegistrationFromSheetRow([]string{"4f2d9c1e-9d3a-4c1b-8f8e-2a6b5c4d3e2f", "s1", "i1"})
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.StudentID)
	assert.Nil(t, got.Length)
	// missing type column falls back to private
	assert.Equal(t, RegistrationTypePrivate, got.RegistrationType)
}

func TestRegistrationFromSheetRowDemotesGroupWithoutClass(t *testing.T) {
	row := make([]string, SheetColumnCount)
	row[0] = "4f2d9c1e-9d3a-4c1b-8f8e-2a6b5c4d3e2f"
	row[1] = "s1"
	row[2] = "i1"
	row[3] = "Monday"
	row[4] = "14:00"
	row[5] = "30"
	row[6] = "group"

	got := RegistrationFromSheetRow(row)
	require.NotNil(t, got)
	assert.Equal(t, RegistrationTypePrivate, got.RegistrationType)
}
