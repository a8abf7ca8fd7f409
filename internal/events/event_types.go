package events

import (
	"time"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.ActorType `json:"type"`
	UserID *string          `json:"user_id,omitempty"`
	Role   *domain.Role     `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	UnitID       string                `json:"unit_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Source       domain.TicketSource   `json:"source"`
	SLADeadline  time.Time             `json:"sla_deadline"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	EscalationID   string                `json:"escalation_id"`
	EscalationType domain.EscalationType `json:"escalation_type"`
	RuleID         *string               `json:"rule_id,omitempty"`
	ToUnitID       string                `json:"to_unit_id"`
	ToUserID       *string               `json:"to_user_id,omitempty"`
	ToRole         *domain.Role          `json:"to_role,omitempty"`
	Reason         string                `json:"reason"`
	TargetUnitIDs  []string              `json:"target_unit_ids"`
	CCUnitIDs      []string              `json:"cc_unit_ids,omitempty"`
}
