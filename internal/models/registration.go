package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

// RegistrationType classifies a registration as a private lesson or a group class.
type RegistrationType string

const (
	RegistrationTypePrivate RegistrationType = "private"
	RegistrationTypeGroup   RegistrationType = "group"
)

// ReenrollmentIntent captures a parent's stated preference for the next trimester.
type ReenrollmentIntent string

const (
	IntentKeep   ReenrollmentIntent = "keep"
	IntentDrop   ReenrollmentIntent = "drop"
	IntentChange ReenrollmentIntent = "change"
)

// ParseIntent validates a reenrollment intent value.
func ParseIntent(raw string) (ReenrollmentIntent, error) {
	switch ReenrollmentIntent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentKeep:
		return IntentKeep, nil
	case IntentDrop:
		return IntentDrop, nil
	case IntentChange:
		return IntentChange, nil
	}
	return "", fmt.Errorf("invalid reenrollment intent %q", raw)
}

// weekdays accepted for lesson scheduling.
var lessonDays = map[string]struct{}{
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {}, "Friday": {},
}

// ValidLessonDay reports whether day is a Monday-Friday weekday name.
func ValidLessonDay(day string) bool {
	_, ok := lessonDays[day]
	return ok
}

// NormalizeRegistrationType maps free-text variants onto the two canonical
// types. Unrecognized input falls back to private.
func NormalizeRegistrationType(raw string) RegistrationType {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "group"), strings.Contains(lowered, "class"):
		return RegistrationTypeGroup
	case strings.Contains(lowered, "private"), strings.Contains(lowered, "individual"):
		return RegistrationTypePrivate
	default:
		return RegistrationTypePrivate
	}
}

// Registration is a student's enrollment in a private lesson slot or a group
// class within one trimester.
type Registration struct {
	ID                 string           `db:"id" json:"id"`
	StudentID          string           `db:"student_id" json:"student_id"`
	InstructorID       string           `db:"instructor_id" json:"instructor_id"`
	Trimester          Trimester        `db:"trimester" json:"trimester"`
	Day                string           `db:"day" json:"day"`
	StartTime          string           `db:"start_time" json:"start_time"`
	Length             *int             `db:"length" json:"length,omitempty"`
	RegistrationType   RegistrationType `db:"registration_type" json:"registration_type"`
	RoomID             string           `db:"room_id" json:"room_id,omitempty"`
	Instrument         string           `db:"instrument" json:"instrument,omitempty"`
	TransportationType string           `db:"transportation_type" json:"transportation_type,omitempty"`
	Notes              string           `db:"notes" json:"notes,omitempty"`
	ClassID            string           `db:"class_id" json:"class_id,omitempty"`
	ClassTitle         string           `db:"class_title" json:"class_title,omitempty"`
	ExpectedStartDate  *time.Time       `db:"expected_start_date" json:"expected_start_date,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	CreatedBy          string           `db:"created_by" json:"created_by"`

	ReenrollmentIntent ReenrollmentIntent `db:"reenrollment_intent" json:"reenrollment_intent,omitempty"`
	IntentSubmittedAt  *time.Time         `db:"intent_submitted_at" json:"intent_submitted_at,omitempty"`
	IntentSubmittedBy  string             `db:"intent_submitted_by" json:"intent_submitted_by,omitempty"`

	LinkedPreviousRegistrationID string `db:"linked_previous_registration_id" json:"linked_previous_registration_id,omitempty"`
}

// NewRegistrationInput carries the raw fields for constructing a Registration.
type NewRegistrationInput struct {
	ID                           string
	StudentID                    string
	InstructorID                 string
	Day                          string
	StartTime                    string
	Length                       *int
	RegistrationType             string
	RoomID                       string
	Instrument                   string
	TransportationType           string
	Notes                        string
	ClassID                      string
	ClassTitle                   string
	ExpectedStartDate            *time.Time
	CreatedBy                    string
	LinkedPreviousRegistrationID string

	// WaitlistClass exempts the registration from the positive-length rule.
	WaitlistClass bool
}

// NewRegistration validates and normalises the input into a Registration.
// A group registration without a class reference is demoted to private; the
// caller is expected to surface that demotion.
func NewRegistration(in NewRegistrationInput) (*Registration, error) {
	var missing []string
	if in.StudentID == "" {
		missing = append(missing, "studentId")
	}
	if in.InstructorID == "" {
		missing = append(missing, "instructorId")
	}
	if in.Day == "" {
		missing = append(missing, "day")
	}
	if in.StartTime == "" {
		missing = append(missing, "startTime")
	}
	if in.RegistrationType == "" {
		missing = append(missing, "registrationType")
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}

	if !ValidLessonDay(in.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid lesson day %q", in.Day))
	}
	start, err := parseStartTime(in.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	regType := NormalizeRegistrationType(in.RegistrationType)
	if regType == RegistrationTypeGroup && in.ClassID == "" {
		regType = RegistrationTypePrivate
	}
	classID := in.ClassID
	classTitle := in.ClassTitle
	if regType == RegistrationTypePrivate {
		classID = ""
		classTitle = ""
	}

	if !in.WaitlistClass {
		if in.Length == nil || *in.Length <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "length must be a positive number of minutes")
		}
	}

	if in.CreatedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "createdBy is required")
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Registration{
		ID:                           id,
		StudentID:                    in.StudentID,
		InstructorID:                 in.InstructorID,
		Day:                          in.Day,
		StartTime:                    start,
		Length:                       in.Length,
		RegistrationType:             regType,
		RoomID:                       in.RoomID,
		Instrument:                   in.Instrument,
		TransportationType:           in.TransportationType,
		Notes:                        in.Notes,
		ClassID:                      classID,
		ClassTitle:                   classTitle,
		ExpectedStartDate:            in.ExpectedStartDate,
		CreatedAt:                    time.Now().UTC(),
		CreatedBy:                    in.CreatedBy,
		LinkedPreviousRegistrationID: in.LinkedPreviousRegistrationID,
	}, nil
}

// IsPrivateLesson reports whether the registration is a private lesson.
func (r *Registration) IsPrivateLesson() bool {
	return r.RegistrationType == RegistrationTypePrivate
}

// IsGroupClass reports whether the registration is a group class.
func (r *Registration) IsGroupClass() bool {
	return r.RegistrationType == RegistrationTypeGroup
}

// UpdateIntent sets the reenrollment intent fields, stamps the submission
// time and returns the receiver for chaining.
func (r *Registration) UpdateIntent(intent ReenrollmentIntent, submittedBy string) *Registration {
	now := time.Now().UTC()
	r.ReenrollmentIntent = intent
	r.IntentSubmittedAt = &now
	r.IntentSubmittedBy = submittedBy
	return r
}

// ConflictsWith reports whether two registrations collide: a duplicate group
// enrollment for the same student and class, or an instructor double-booking
// on the same day with overlapping time windows.
func (r *Registration) ConflictsWith(other *Registration) bool {
	if other == nil {
		return false
	}
	if r.IsGroupClass() && other.IsGroupClass() &&
		r.StudentID == other.StudentID && r.ClassID != "" && r.ClassID == other.ClassID {
		return true
	}
	if r.InstructorID == other.InstructorID && r.Day == other.Day {
		return overlaps(r.StartTime, r.Length, other.StartTime, other.Length)
	}
	return false
}

// overlaps compares two half-open [start, start+length) windows in minutes.
func overlaps(aStart string, aLen *int, bStart string, bLen *int) bool {
	if aLen == nil || bLen == nil || *aLen <= 0 || *bLen <= 0 {
		return false
	}
	a, errA := minutesOfDay(aStart)
	b, errB := minutesOfDay(bStart)
	if errA != nil || errB != nil {
		return false
	}
	return a < b+*bLen && b < a+*aLen
}

func minutesOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour*60 + minute, nil
}

// parseStartTime canonicalises a clock time into zero-padded 24-hour HH:MM.
func parseStartTime(raw string) (string, error) {
	total, err := minutesOfDay(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

// RegistrationFilter captures query options for listing registrations.
type RegistrationFilter struct {
	StudentID    string
	InstructorID string
	Trimester    Trimester
	Type         RegistrationType
	Page         int
	PageSize     int
}
