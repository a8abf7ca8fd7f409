package dto

import (
	"time"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// ManualEscalationRequest payload.
type ManualEscalationRequest struct {
	ToUnitID      string       `json:"to_unit_id"`
	ToUserID      *string      `json:"to_user_id"`
	ToRole        *domain.Role `json:"to_role"`
	Reason        string       `json:"reason"`
	TargetUnitIDs []string     `json:"target_unit_ids"`
	CCUnitIDs     []string     `json:"cc_unit_ids"`
}

// EscalationResponse describes one escalation record.
type EscalationResponse struct {
	ID             string                `json:"id"`
	TicketID       string                `json:"ticket_id"`
	FromUnitID     *string               `json:"from_unit_id,omitempty"`
	FromUserID     *string               `json:"from_user_id,omitempty"`
	ToUnitID       string                `json:"to_unit_id"`
	ToUserID       *string               `json:"to_user_id,omitempty"`
	ToRole         *domain.Role          `json:"to_role,omitempty"`
	Reason         string                `json:"reason"`
	EscalationType domain.EscalationType `json:"escalation_type"`
	RuleID         *string               `json:"rule_id,omitempty"`
	TargetUnitIDs  []string              `json:"target_unit_ids"`
	CCUnitIDs      []string              `json:"cc_unit_ids"`
	CreatedAt      time.Time             `json:"created_at"`
}

// EscalationRuleRequest payload for create and update.
type EscalationRuleRequest struct {
	Name                string                  `json:"name"`
	Description         string                  `json:"description"`
	ServiceTypes        []domain.TicketType     `json:"service_types"`
	CategoryIDs         []string                `json:"category_ids"`
	PriorityLevels      []domain.TicketPriority `json:"priority_levels"`
	UrgencyThreshold    *int                    `json:"urgency_threshold"`
	ConfidenceThreshold *float64                `json:"confidence_threshold"`
	SentimentThreshold  *float64                `json:"sentiment_threshold"`
	SLABreachEscalation bool                    `json:"sla_breach_escalation"`
	FromRole            domain.Role             `json:"from_role"`
	ToRole              domain.Role             `json:"to_role"`
	SkipLevels          bool                    `json:"skip_levels"`
	IsActive            *bool                   `json:"is_active"`
}

// EscalationRuleResponse describes a rule with its counters.
type EscalationRuleResponse struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Description         string                  `json:"description,omitempty"`
	ServiceTypes        []domain.TicketType     `json:"service_types"`
	CategoryIDs         []string                `json:"category_ids"`
	PriorityLevels      []domain.TicketPriority `json:"priority_levels"`
	UrgencyThreshold    *int                    `json:"urgency_threshold,omitempty"`
	ConfidenceThreshold *float64                `json:"confidence_threshold,omitempty"`
	SentimentThreshold  *float64                `json:"sentiment_threshold,omitempty"`
	SLABreachEscalation bool                    `json:"sla_breach_escalation"`
	FromRole            domain.Role             `json:"from_role"`
	ToRole              domain.Role             `json:"to_role,omitempty"`
	SkipLevels          bool                    `json:"skip_levels"`
	IsActive            bool                    `json:"is_active"`
	ExecutionCount      int64                   `json:"execution_count"`
	SuccessCount        int64                   `json:"success_count"`
	LastExecutedAt      *time.Time              `json:"last_executed_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// RuleExecutionResponse is one automatic attempt of a rule.
type RuleExecutionResponse struct {
	ID           string                  `json:"id"`
	TicketID     string                  `json:"ticket_id"`
	Outcome      domain.ExecutionOutcome `json:"outcome"`
	ErrorDetail  *string                 `json:"error_detail,omitempty"`
	EscalationID *string                 `json:"escalation_id,omitempty"`
	ExecutedAt   time.Time               `json:"executed_at"`
}
