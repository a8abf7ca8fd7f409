package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/policy"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	units      repository.UnitRepository
	categories repository.CategoryRepository
	history    repository.TicketHistoryRepository
	lifecycle  *LifecycleService
	access     *AccessService
	matrix     *policy.Matrix
	sla        *SLACalculator
	numbers    *TicketNumberGenerator
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	maxRetries int
}

// TicketDependencies bundles collaborators for TicketService.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	UnitRepo     repository.UnitRepository
	CategoryRepo repository.CategoryRepository
	HistoryRepo  repository.TicketHistoryRepository
	Lifecycle    *LifecycleService
	Access       *AccessService
	Matrix       *policy.Matrix
	SLA          *SLACalculator
	Numbers      *TicketNumberGenerator
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
	// NumberRetries bounds re-generation when a ticket number collides.
	NumberRetries int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Type            domain.TicketType
	Title           string
	Description     string
	UnitID          string
	CategoryID      *string
	Priority        domain.TicketPriority
	UrgencyLevel    int
	ConfidenceScore *float64
	SentimentScore  *float64
	Source          domain.TicketSource
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	matrix := deps.Matrix
	if matrix == nil {
		matrix = policy.Default()
	}
	sla := deps.SLA
	if sla == nil {
		sla = NewSLACalculator(DefaultSLA)
	}
	retries := deps.NumberRetries
	if retries <= 0 {
		retries = 3
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		units:      deps.UnitRepo,
		categories: deps.CategoryRepo,
		history:    deps.HistoryRepo,
		lifecycle:  deps.Lifecycle,
		access:     deps.Access,
		matrix:     matrix,
		sla:        sla,
		numbers:    deps.Numbers,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     observability.OrNop(deps.Logger),
		maxRetries: retries,
	}
}

// CreateTicket opens a ticket. A nil actor is a public submission, which
// always gets medium priority. Internal actors need can_create and may
// not exceed their max assignable priority.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}

	if actor == nil {
		input.Priority = domain.TicketPriorityMedium
	} else {
		if !actor.IsActive {
			return nil, apperrors.NewAccessDenied(ReasonInactiveUser)
		}
		if !s.matrix.Capabilities(actor.Role).CanCreate {
			return nil, apperrors.NewAccessDenied("missing can_create")
		}
		if !s.matrix.CanAssignPriority(actor.Role, input.Priority) {
			return nil, apperrors.NewAccessDenied("priority above max_assignable_priority")
		}
	}

	unit, err := s.units.GetByID(ctx, input.UnitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("unit", map[string]any{"unit_id": input.UnitID})
		}
		return nil, err
	}
	if !unit.IsActive {
		return nil, apperrors.NewValidationError("unit is inactive", map[string]any{"unit_id": unit.ID})
	}

	var category *domain.Category
	if input.CategoryID != nil {
		category, err = s.categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("category", map[string]any{"category_id": *input.CategoryID})
			}
			return nil, err
		}
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		Type:            input.Type,
		Title:           input.Title,
		Description:     input.Description,
		UnitID:          unit.ID,
		CategoryID:      input.CategoryID,
		Status:          domain.TicketStatusOpen,
		Priority:        input.Priority,
		UrgencyLevel:    input.UrgencyLevel,
		ConfidenceScore: input.ConfidenceScore,
		SentimentScore:  input.SentimentScore,
		Source:          input.Source,
		SLADeadline:     s.sla.ComputeDeadline(now, unit, category),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insertWithNumber(ctx, ticket); err != nil {
		return nil, err
	}

	actorInfo := events.Actor{Type: domain.ActorTypePublic}
	if actor != nil {
		actorInfo = eventActor(userChange(actor, ""))
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     actorInfo,
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			UnitID:       ticket.UnitID,
			Priority:     ticket.Priority,
			Source:       ticket.Source,
			SLADeadline:  ticket.SLADeadline,
		},
	})
	return ticket, nil
}

func (s *TicketService) insertWithNumber(ctx context.Context, ticket *domain.Ticket) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		ticket.TicketNumber, err = s.numbers.Generate(ctx)
		if err != nil {
			return err
		}
		err = s.tickets.Create(ctx, ticket)
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		s.logger.Warn("ticket number collision, retrying",
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Int("attempt", attempt+1))
	}
	return apperrors.NewConflict("could not allocate a ticket number", map[string]any{"attempts": s.maxRetries})
}

func validateCreateInput(input *TicketCreateInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	details := map[string]any{}

	if input.Title == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(input.UnitID) == "" {
		details["unit_id"] = "required"
	}
	switch input.Type {
	case domain.TicketTypeInformation, domain.TicketTypeComplaint, domain.TicketTypeSuggestion, domain.TicketTypeSatisfaction:
	case "":
		input.Type = domain.TicketTypeComplaint
	default:
		details["type"] = "unknown ticket type"
	}
	switch input.Source {
	case domain.TicketSourceWeb, domain.TicketSourceWhatsApp, domain.TicketSourceEmail,
		domain.TicketSourcePhone, domain.TicketSourceWalkIn, domain.TicketSourceQRCode:
	case "":
		input.Source = domain.TicketSourceWeb
	default:
		details["source"] = "unknown source"
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	} else if !input.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if input.UrgencyLevel == 0 {
		input.UrgencyLevel = 1
	} else if input.UrgencyLevel < 1 || input.UrgencyLevel > 5 {
		details["urgency_level"] = "must be between 1 and 5"
	}
	if c := input.ConfidenceScore; c != nil && (*c < 0 || *c > 100) {
		details["confidence_score"] = "must be between 0 and 100"
	}
	if v := input.SentimentScore; v != nil && (*v < -1 || *v > 1) {
		details["sentiment_score"] = "must be between -1 and 1"
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

// GetTicket loads a ticket the actor may view.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireTicketAccess(ctx, actor, ticket, ActionView); err != nil {
		return nil, err
	}
	return ticket, nil
}

// CheckAccess evaluates action on a ticket without acting on it.
func (s *TicketService) CheckAccess(ctx context.Context, actor *domain.User, ticketID string, action Action) (AccessDecision, error) {
	switch action {
	case ActionView, ActionUpdateStatus, ActionEscalate:
	default:
		return AccessDecision{}, apperrors.NewValidationError("unknown action", map[string]any{"action": action})
	}
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return AccessDecision{}, err
	}
	return s.access.ValidateTicketAccess(ctx, actor, ticket, action)
}

// IsOverdue reports whether ticket is past its deadline.
func (s *TicketService) IsOverdue(ticket *domain.Ticket) bool {
	return s.lifecycle.IsOverdue(ticket)
}

// RequestStatusTransition checks access and capabilities before moving
// the ticket. Closing requires can_close and entering ESCALATED requires
// can_escalate. Escalating with a destination unit is the escalation
// service's job.
func (s *TicketService) RequestStatusTransition(ctx context.Context, actor *domain.User, ticketID string, target domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireTicketAccess(ctx, actor, ticket, ActionUpdateStatus); err != nil {
		return nil, err
	}
	caps := s.matrix.Capabilities(actor.Role)
	if target == domain.TicketStatusClosed && !caps.CanClose {
		return nil, apperrors.NewAccessDenied("missing can_close")
	}
	if target == domain.TicketStatusEscalated && !caps.CanEscalate {
		return nil, apperrors.NewAccessDenied("missing can_escalate")
	}

	if err := s.lifecycle.RequestTransition(ctx, ticket, target, userChange(actor, strings.TrimSpace(comment))); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListHistory returns the status trail of a ticket the actor may view.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

func (s *TicketService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}
