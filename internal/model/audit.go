package model

import "time"

// AuditLevel classifies audit events.  Security and activity events are
// always persisted; info events only reach the structured log.
type AuditLevel string

const (
	AuditInfo     AuditLevel = "info"
	AuditError    AuditLevel = "error"
	AuditSecurity AuditLevel = "security"
	AuditActivity AuditLevel = "activity"
)

// AuditLog mirrors the `audit_logs` table (append-only).
type AuditLog struct {
	ID        uint64
	Level     AuditLevel
	UserID    *uint64
	IPAddress *string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}
