package domain

import "time"

// ActorType indicates who caused a change.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypePublic ActorType = "PUBLIC"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketHistory is an immutable status-change trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	OldStatus     TicketStatus
	NewStatus     TicketStatus
	Comment       string
	CreatedAt     time.Time
}
