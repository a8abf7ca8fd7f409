package domain

import "time"

// EscalationType tells how an escalation was triggered.
type EscalationType string

const (
	EscalationManual    EscalationType = "manual"
	EscalationAutomatic EscalationType = "automatic"
)

// EscalationRule configures automatic escalation of matching tickets.
// Nil thresholds and empty lists do not constrain the match.
type EscalationRule struct {
	ID                  string
	Name                string
	Description         string
	ServiceTypes        []TicketType
	CategoryIDs         []string
	PriorityLevels      []TicketPriority
	UrgencyThreshold    *int
	ConfidenceThreshold *float64
	SentimentThreshold  *float64
	SLABreachEscalation bool
	FromRole            Role
	ToRole              Role
	SkipLevels          bool
	IsActive            bool
	ExecutionCount      int64
	SuccessCount        int64
	LastExecutedAt      *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Matches evaluates the rule criteria against a ticket in memory. Store
// implementations translate the same criteria into queries.
func (r *EscalationRule) Matches(t *Ticket, now time.Time) bool {
	if t.Status != TicketStatusOpen && t.Status != TicketStatusInProgress {
		return false
	}
	if len(r.ServiceTypes) > 0 && !containsType(r.ServiceTypes, t.Type) {
		return false
	}
	if len(r.CategoryIDs) > 0 {
		if t.CategoryID == nil || !containsString(r.CategoryIDs, *t.CategoryID) {
			return false
		}
	}
	if len(r.PriorityLevels) > 0 && !containsPriority(r.PriorityLevels, t.Priority) {
		return false
	}
	if r.UrgencyThreshold != nil && t.UrgencyLevel < *r.UrgencyThreshold {
		return false
	}
	if r.ConfidenceThreshold != nil {
		if t.ConfidenceScore == nil || *t.ConfidenceScore < *r.ConfidenceThreshold {
			return false
		}
	}
	if r.SentimentThreshold != nil {
		if t.SentimentScore == nil || *t.SentimentScore > *r.SentimentThreshold {
			return false
		}
	}
	if r.SLABreachEscalation && !now.After(t.SLADeadline) {
		return false
	}
	return true
}

func containsType(list []TicketType, v TicketType) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsPriority(list []TicketPriority, v TicketPriority) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// EscalationRecord is one append-only hop of a ticket to another unit.
type EscalationRecord struct {
	ID             string
	TicketID       string
	FromUnitID     *string
	FromUserID     *string
	ToUnitID       string
	ToUserID       *string
	ToRole         *Role
	Reason         string
	EscalationType EscalationType
	RuleID         *string
	TargetUnitIDs  []string
	CCUnitIDs      []string
	CreatedAt      time.Time
}

// TargetsUnit reports whether unitID receives the escalation as a target.
func (e *EscalationRecord) TargetsUnit(unitID string) bool {
	if unitID == "" {
		return false
	}
	return e.ToUnitID == unitID || containsString(e.TargetUnitIDs, unitID)
}

// CopiesUnit reports whether unitID is carbon-copied on the escalation.
func (e *EscalationRecord) CopiesUnit(unitID string) bool {
	return unitID != "" && containsString(e.CCUnitIDs, unitID)
}

// ExecutionOutcome is the result of one automatic rule execution.
type ExecutionOutcome string

const (
	// ExecutionPending marks a claim held by a running sweep.
	ExecutionPending ExecutionOutcome = "pending"
	ExecutionSuccess ExecutionOutcome = "success"
	ExecutionFailed  ExecutionOutcome = "failed"
)

// RuleExecutionLog records one attempt of a rule against a ticket.
type RuleExecutionLog struct {
	ID           string
	RuleID       string
	TicketID     string
	Outcome      ExecutionOutcome
	ErrorDetail  *string
	EscalationID *string
	ExecutedAt   time.Time
}
