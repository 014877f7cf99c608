package models

import "time"

// AttendanceStatus classifies a lesson attendance record.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Attendance records one lesson occurrence for a registration. At most one
// record may exist per registration and date.
type Attendance struct {
	ID             string           `db:"id" json:"id"`
	RegistrationID string           `db:"registration_id" json:"registration_id"`
	Date           time.Time        `db:"date" json:"date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Notes          string           `db:"notes" json:"notes,omitempty"`
	RecordedBy     string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceSummary aggregates attendance counts for one registration.
type AttendanceSummary struct {
	RegistrationID string `db:"registration_id" json:"registration_id"`
	Present        int    `db:"present" json:"present"`
	Absent         int    `db:"absent" json:"absent"`
	Excused        int    `db:"excused" json:"excused"`
	Total          int    `db:"total" json:"total"`
}
