package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates handling priority, ordered low to critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

var priorityRank = map[TicketPriority]int{
	TicketPriorityLow:      1,
	TicketPriorityMedium:   2,
	TicketPriorityHigh:     3,
	TicketPriorityCritical: 4,
}

// Rank returns the ordinal of the priority, 0 when unknown.
func (p TicketPriority) Rank() int {
	return priorityRank[p]
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() > 0
}

// TicketType is the service type of a submission.
type TicketType string

const (
	TicketTypeInformation  TicketType = "information"
	TicketTypeComplaint    TicketType = "complaint"
	TicketTypeSuggestion   TicketType = "suggestion"
	TicketTypeSatisfaction TicketType = "satisfaction"
)

// TicketSource is the channel a ticket arrived through.
type TicketSource string

const (
	TicketSourceWeb      TicketSource = "web"
	TicketSourceWhatsApp TicketSource = "whatsapp"
	TicketSourceEmail    TicketSource = "email"
	TicketSourcePhone    TicketSource = "phone"
	TicketSourceWalkIn   TicketSource = "walk_in"
	TicketSourceQRCode   TicketSource = "qr_code"
)

// Ticket is the aggregate for complaints and requests.
type Ticket struct {
	ID              string
	TicketNumber    string
	Type            TicketType
	Title           string
	Description     string
	UnitID          string
	CategoryID      *string
	Status          TicketStatus
	Priority        TicketPriority
	UrgencyLevel    int
	ConfidenceScore *float64
	SentimentScore  *float64
	Source          TicketSource
	AssignedTo      *string
	SLADeadline     time.Time
	IsEscalated     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusEscalated, TicketStatusResolved, TicketStatusOpen},
	TicketStatusEscalated:  {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:     {},
}

// TicketStatuses lists every known status.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusEscalated,
		TicketStatusResolved,
		TicketStatusClosed,
	}
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s TicketStatus) IsTerminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// CanTransition reports whether current -> next is in the transition table.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionPath returns the shortest chain of statuses leading from
// current to target, excluding current. It returns nil when target is
// unreachable or equal to current.
func TransitionPath(current, target TicketStatus) []TicketStatus {
	if current == target {
		return nil
	}
	prev := map[TicketStatus]TicketStatus{current: current}
	queue := []TicketStatus{current}
	for len(queue) > 0 {
		status := queue[0]
		queue = queue[1:]
		for _, next := range allowedTransitions[status] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = status
			if next == target {
				var path []TicketStatus
				for step := target; step != current; step = prev[step] {
					path = append([]TicketStatus{step}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// ApplyStatus moves the ticket into next and stamps lifecycle timestamps.
// The caller has already validated the transition.
func (t *Ticket) ApplyStatus(next TicketStatus, now time.Time) {
	t.Status = next
	switch next {
	case TicketStatusInProgress:
		if t.FirstResponseAt == nil {
			stamp := now
			t.FirstResponseAt = &stamp
		}
	case TicketStatusResolved:
		if t.ResolvedAt == nil {
			stamp := now
			t.ResolvedAt = &stamp
		}
	case TicketStatusEscalated:
		t.IsEscalated = true
	}
	t.UpdatedAt = now
}

// IsOverdue reports whether the ticket is still open past its SLA deadline.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.Status == TicketStatusResolved || t.Status == TicketStatusClosed {
		return false
	}
	return now.After(t.SLADeadline)
}
