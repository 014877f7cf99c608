package models

import "time"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleParent     UserRole = "PARENT"
)

// User represents an account that can authenticate with an access code.
// Staff use 6-digit codes, parents their phone number. The code is stored
// bcrypt-hashed; AccessCodeLookup is a digest used only to locate the row.
type User struct {
	ID               string     `db:"id" json:"id"`
	Role             UserRole   `db:"role" json:"role"`
	FullName         string     `db:"full_name" json:"full_name"`
	Email            string     `db:"email" json:"email,omitempty"`
	Phone            string     `db:"phone" json:"phone,omitempty"`
	AccessCodeHash   string     `db:"access_code_hash" json:"-"`
	AccessCodeLookup string     `db:"access_code_lookup" json:"-"`
	ActorID          string     `db:"actor_id" json:"actor_id"`
	Active           bool       `db:"active" json:"active"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
