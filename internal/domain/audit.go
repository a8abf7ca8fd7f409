package domain

import "time"

// AuditLogEntry is a write-only trace of an access decision.
type AuditLogEntry struct {
	ID           string
	ActorID      *string
	ActorRole    *Role
	Action       string
	ResourceType string
	ResourceID   string
	UnitID       *string
	Unauthorized bool
	Reason       string
	RequestID    string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}
