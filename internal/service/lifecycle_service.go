package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// StatusChange describes who asked for a transition.
type StatusChange struct {
	ActorType domain.ActorType
	ActorID   *string
	ActorRole *domain.Role
	Comment   string
}

func systemChange(comment string) StatusChange {
	return StatusChange{ActorType: domain.ActorTypeSystem, Comment: comment}
}

func userChange(user *domain.User, comment string) StatusChange {
	id := user.ID
	role := user.Role
	return StatusChange{ActorType: domain.ActorTypeUser, ActorID: &id, ActorRole: &role, Comment: comment}
}

// LifecycleService applies status transitions. It performs no
// authorization; callers check access first.
type LifecycleService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// LifecycleDependencies bundles collaborators for LifecycleService.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     observability.OrNop(deps.Logger),
	}
}

// RequestTransition moves ticket to target and persists it. On success
// ticket is updated in place.
func (s *LifecycleService) RequestTransition(ctx context.Context, ticket *domain.Ticket, target domain.TicketStatus, change StatusChange) error {
	if !domain.CanTransition(ticket.Status, target) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(target))
	}

	now := s.clock.Now()
	previous := ticket.Status
	updated := *ticket
	updated.ApplyStatus(target, now)
	if err := s.tickets.UpdateLifecycle(ctx, &updated); err != nil {
		return err
	}
	*ticket = updated

	if s.history != nil {
		entry := &domain.TicketHistory{
			TicketID:      ticket.ID,
			ChangedByType: change.ActorType,
			ChangedByID:   change.ActorID,
			OldStatus:     previous,
			NewStatus:     target,
			Comment:       change.Comment,
			CreatedAt:     now,
		}
		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Warn("ticket history write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Actor:     eventActor(change),
		Timestamp: now,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: previous,
			NewStatus: target,
			Comment:   change.Comment,
		},
	})
	return nil
}

// Escalate moves an OPEN or IN_PROGRESS ticket into ESCALATED along the
// shortest legal path, validating and stamping every hop. An OPEN ticket
// passes through IN_PROGRESS and so gets first_response_at stamped. Hops
// already applied are not rolled back when a later one fails; the error
// then carries the status the ticket was left in.
func (s *LifecycleService) Escalate(ctx context.Context, ticket *domain.Ticket, change StatusChange) error {
	origin := ticket.Status
	if origin != domain.TicketStatusOpen && origin != domain.TicketStatusInProgress {
		return apperrors.NewInvalidTransition(string(origin), string(domain.TicketStatusEscalated))
	}
	for _, step := range domain.TransitionPath(origin, domain.TicketStatusEscalated) {
		if err := s.RequestTransition(ctx, ticket, step, change); err != nil {
			if ticket.Status == origin {
				return err
			}
			s.logger.Warn("escalation stopped part way",
				zap.String("ticket_id", ticket.ID),
				zap.String("from", string(origin)),
				zap.String("reached", string(ticket.Status)),
				zap.Error(err))
			return apperrors.NewExecutionFailure(err, map[string]any{
				"from":    origin,
				"reached": ticket.Status,
				"step":    step,
			})
		}
	}
	return nil
}

// IsOverdue reports whether ticket is past its deadline and not yet resolved.
func (s *LifecycleService) IsOverdue(ticket *domain.Ticket) bool {
	return ticket.IsOverdue(s.clock.Now())
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func eventActor(change StatusChange) events.Actor {
	return events.Actor{
		Type:   change.ActorType,
		UserID: change.ActorID,
		Role:   change.ActorRole,
	}
}
