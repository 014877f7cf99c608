package models

import (
	"strconv"
	"strings"
	"time"
)

// Class is a group-lesson template: a standing weekly slot taught by an
// instructor with a grade range and a size cap.
type Class struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Day          string    `db:"day" json:"day"`
	StartTime    string    `db:"start_time" json:"start_time"`
	Length       int       `db:"length" json:"length"`
	Instrument   string    `db:"instrument" json:"instrument"`
	MinimumGrade string    `db:"minimum_grade" json:"minimum_grade"`
	MaximumGrade string    `db:"maximum_grade" json:"maximum_grade"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Waitlist     bool      `db:"waitlist" json:"waitlist"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeOrdinal maps a display grade onto an ordinal scale where Pre-K and K
// sort below grade 1. Returns false for unrecognized grades.
func GradeOrdinal(grade string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(grade)) {
	case "pre-k", "prek", "pk":
		return -1, true
	case "k", "0":
		return 0, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(grade))
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return n, true
}

// AllowsGrade reports whether the student grade falls inside the class's
// inclusive grade range. Unparseable bounds do not restrict.
func (c *Class) AllowsGrade(grade string) bool {
	g, ok := GradeOrdinal(grade)
	if !ok {
		return false
	}
	if min, ok := GradeOrdinal(c.MinimumGrade); ok && g < min {
		return false
	}
	if max, ok := GradeOrdinal(c.MaximumGrade); ok && g > max {
		return false
	}
	return true
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	InstructorID string
	Instrument   string
	Search       string
	Page         int
	PageSize     int
}
