package models

import "time"

// AuditAction constants name the operator actions worth an audit trail.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionUserCreate         = "USER_CREATE"
	AuditActionUserUpdate         = "USER_UPDATE"
	AuditActionUserDelete         = "USER_DELETE"
	AuditActionAssignmentChange   = "ASSIGNMENT_CHANGE"
	AuditActionCancellationDecide = "CANCELLATION_DECIDE"
	AuditActionInvigilatorResign  = "INVIGILATOR_RESIGN"
)

// AuditLog is one audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
