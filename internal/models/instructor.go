package models

import "time"

// Instructor represents a teaching staff member.
type Instructor struct {
	ID          string    `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Email       string    `db:"email" json:"email,omitempty"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	Instruments string    `db:"instruments" json:"instruments,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the instructor's full name.
func (i *Instructor) DisplayName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// InstructorFilter encapsulates search parameters for listing instructors.
type InstructorFilter struct {
	Search     string
	Instrument string
	Active     *bool
	Page       int
	PageSize   int
}
