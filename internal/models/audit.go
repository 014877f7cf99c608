package models

import "time"

// AuditAction constants represent mutations recorded on the audit trail.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionRegistrationCreate = "REGISTRATION_CREATE"
	AuditActionRegistrationDelete = "REGISTRATION_DELETE"
	AuditActionRegistrationCancel = "REGISTRATION_CANCEL"
	AuditActionIntentUpdate       = "INTENT_UPDATE"
	AuditActionImport             = "IMPORT"
	AuditActionExport             = "EXPORT"
	AuditActionPeriodChange       = "PERIOD_CHANGE"
)

// AuditLog is one audit trail record. ActorID is the opaque identity of the
// acting party; no mutation is written without one.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
