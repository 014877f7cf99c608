package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The legacy spreadsheet kept registrations as 20-column rows in this fixed
// order. The codec below round-trips that layout for imports and exports.
const SheetColumnCount = 20

// SheetHeader lists the legacy column names in order.
var SheetHeader = []string{
	"Id", "StudentId", "InstructorId", "Day", "StartTime", "Length",
	"RegistrationType", "RoomId", "Instrument", "TransportationType", "Notes",
	"ClassId", "ClassTitle", "ExpectedStartDate", "CreatedAt", "CreatedBy",
	"reenrollmentIntent", "intentSubmittedAt", "intentSubmittedBy",
	"linkedPreviousRegistrationId",
}

// SheetRow renders the registration as a legacy 20-column row.
func (r *Registration) SheetRow() []string {
	row := make([]string, SheetColumnCount)
	row[0] = r.ID
	row[1] = r.StudentID
	row[2] = r.InstructorID
	row[3] = r.Day
	row[4] = r.StartTime
	if r.Length != nil {
		row[5] = strconv.Itoa(*r.Length)
	}
	row[6] = string(r.RegistrationType)
	row[7] = r.RoomID
	row[8] = r.Instrument
	row[9] = r.TransportationType
	row[10] = r.Notes
	row[11] = r.ClassID
	row[12] = r.ClassTitle
	if r.ExpectedStartDate != nil {
		row[13] = r.ExpectedStartDate.UTC().Format(time.RFC3339)
	}
	if !r.CreatedAt.IsZero() {
		row[14] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	row[15] = r.CreatedBy
	row[16] = string(r.ReenrollmentIntent)
	if r.IntentSubmittedAt != nil {
		row[17] = r.IntentSubmittedAt.UTC().Format(time.RFC3339)
	}
	row[18] = r.IntentSubmittedBy
	row[19] = r.LinkedPreviousRegistrationID
	return row
}

// RegistrationFromSheetRow parses a legacy sheet row into a Registration.
// Blank rows, header rows and rows whose first cell is not UUID-shaped yield
// nil so bulk scans tolerate trailing garbage without aborting.
func RegistrationFromSheetRow(row []string) *Registration {
	if len(row) == 0 {
		return nil
	}
	first := strings.TrimSpace(row[0])
	if first == "" {
		return nil
	}
	switch strings.ToLower(first) {
	case "id", "registrationid":
		return nil
	}
	if _, err := uuid.Parse(first); err != nil {
		return nil
	}

	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	reg := &Registration{
		ID:                           first,
		StudentID:                    cell(1),
		InstructorID:                 cell(2),
		Day:                          cell(3),
		StartTime:                    cell(4),
		RegistrationType:             NormalizeRegistrationType(cell(6)),
		RoomID:                       cell(7),
		Instrument:                   cell(8),
		TransportationType:           cell(9),
		Notes:                        cell(10),
		ClassID:                      cell(11),
		ClassTitle:                   cell(12),
		CreatedBy:                    cell(15),
		IntentSubmittedBy:            cell(18),
		LinkedPreviousRegistrationID: cell(19),
	}

	if canonical, err := parseStartTime(reg.StartTime); err == nil {
		reg.StartTime = canonical
	}
	if n, err := strconv.Atoi(cell(5)); err == nil && n > 0 {
		reg.Length = &n
	}
	if reg.RegistrationType == RegistrationTypeGroup && reg.ClassID == "" {
		reg.RegistrationType = RegistrationTypePrivate
	}
	if ts := parseSheetTime(cell(13)); ts != nil {
		reg.ExpectedStartDate = ts
	}
	if ts := parseSheetTime(cell(14)); ts != nil {
		reg.CreatedAt = *ts
	}
	if intent, err := ParseIntent(cell(16)); err == nil {
		reg.ReenrollmentIntent = intent
	}
	if ts := parseSheetTime(cell(17)); ts != nil {
		reg.IntentSubmittedAt = ts
	}

	return reg
}

func parseSheetTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}
