package dto

import (
	"time"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// CreateTicketRequest payload, shared by the public and internal endpoints.
type CreateTicketRequest struct {
	Type            domain.TicketType     `json:"type"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	UnitID          string                `json:"unit_id"`
	CategoryID      *string               `json:"category_id"`
	Priority        domain.TicketPriority `json:"priority"`
	UrgencyLevel    int                   `json:"urgency_level"`
	ConfidenceScore *float64              `json:"confidence_score"`
	SentimentScore  *float64              `json:"sentiment_score"`
	Source          domain.TicketSource   `json:"source"`
}

// StatusTransitionRequest payload.
type StatusTransitionRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// PublicTicketResponse is what an anonymous submitter gets back.
type PublicTicketResponse struct {
	TicketNumber string              `json:"ticket_number"`
	Status       domain.TicketStatus `json:"status"`
	SLADeadline  time.Time           `json:"sla_deadline"`
	CreatedAt    time.Time           `json:"created_at"`
}

// TicketResponse is the full ticket view for internal users.
type TicketResponse struct {
	ID              string                `json:"id"`
	TicketNumber    string                `json:"ticket_number"`
	Type            domain.TicketType     `json:"type"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	UnitID          string                `json:"unit_id"`
	CategoryID      *string               `json:"category_id,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	UrgencyLevel    int                   `json:"urgency_level"`
	ConfidenceScore *float64              `json:"confidence_score,omitempty"`
	SentimentScore  *float64              `json:"sentiment_score,omitempty"`
	Source          domain.TicketSource   `json:"source"`
	AssignedTo      *string               `json:"assigned_to,omitempty"`
	SLADeadline     time.Time             `json:"sla_deadline"`
	IsOverdue       bool                  `json:"is_overdue"`
	IsEscalated     bool                  `json:"is_escalated"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
}

// TicketHistoryResponse captures a status change entry.
type TicketHistoryResponse struct {
	ID            string              `json:"id"`
	ChangedByType domain.ActorType    `json:"changed_by_type"`
	ChangedByID   *string             `json:"changed_by_id,omitempty"`
	OldStatus     domain.TicketStatus `json:"old_status"`
	NewStatus     domain.TicketStatus `json:"new_status"`
	Comment       string              `json:"comment,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// AccessDecisionResponse reports whether the caller may act on a ticket.
type AccessDecisionResponse struct {
	Action  string `json:"action"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}
