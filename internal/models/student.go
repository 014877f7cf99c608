package models

import "time"

// Student represents a learner enrolled in the lesson program. A student may
// reference up to two parent accounts.
type Student struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Nickname   string    `db:"nickname" json:"nickname,omitempty"`
	Grade      string    `db:"grade" json:"grade"`
	School     string    `db:"school" json:"school,omitempty"`
	Parent1ID  *string   `db:"parent1_id" json:"parent1_id,omitempty"`
	Parent2ID  *string   `db:"parent2_id" json:"parent2_id,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName prefers the nickname over the legal first name.
func (s *Student) DisplayName() string {
	first := s.FirstName
	if s.Nickname != "" {
		first = s.Nickname
	}
	if s.LastName == "" {
		return first
	}
	return first + " " + s.LastName
}

// HasParent reports whether the given parent account is linked to the student.
func (s *Student) HasParent(parentID string) bool {
	if parentID == "" {
		return false
	}
	if s.Parent1ID != nil && *s.Parent1ID == parentID {
		return true
	}
	if s.Parent2ID != nil && *s.Parent2ID == parentID {
		return true
	}
	return false
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	Search   string
	ParentID string
	Grade    string
	Active   *bool
	Page     int
	PageSize int
}
