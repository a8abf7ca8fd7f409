package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/repository"
)

// Notice is one message bound for the delivery channels.
type Notice struct {
	Event    events.EventType
	TicketID string
	Subject  string
	// UserIDs are addressed individually.
	UserIDs []string
	// UnitIDs are addressed as a whole, such as carbon-copied units.
	UnitIDs []string
}

// NotificationService turns domain events into notices. Email and webhook
// delivery are stubs that only log what would be sent.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. users resolves role-addressed
// escalations to people and may be nil.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		logger:     observability.OrNop(logger),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
	}
	n.deliver(ctx, Notice{
		Event:    event.Type,
		TicketID: event.TicketID,
		Subject:  fmt.Sprintf("New %s priority ticket %s", payload.Priority, payload.TicketNumber),
		UnitIDs:  []string{payload.UnitID},
	}, zap.Time("sla_deadline", payload.SLADeadline), zap.String("source", string(payload.Source)))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
	}
	// intermediate hops of an escalation are announced by the escalation itself
	if payload.NewStatus == domain.TicketStatusInProgress && event.Actor.Type == domain.ActorTypeSystem {
		return nil
	}
	n.deliver(ctx, Notice{
		Event:    event.Type,
		TicketID: event.TicketID,
		Subject:  fmt.Sprintf("Ticket moved from %s to %s", payload.OldStatus, payload.NewStatus),
	})
	return nil
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
	}
	recipients, err := n.escalationRecipients(ctx, payload)
	if err != nil {
		return fmt.Errorf("resolve escalation recipients: %w", err)
	}
	notice := Notice{
		Event:    event.Type,
		TicketID: event.TicketID,
		Subject:  fmt.Sprintf("Ticket escalated (%s): %s", payload.EscalationType, payload.Reason),
		UserIDs:  recipients,
		UnitIDs:  payload.CCUnitIDs,
	}
	fields := []zap.Field{
		zap.String("escalation_id", payload.EscalationID),
		zap.String("escalation_type", string(payload.EscalationType)),
		zap.String("to_unit_id", payload.ToUnitID),
		zap.Strings("target_unit_ids", payload.TargetUnitIDs),
	}
	if payload.RuleID != nil {
		fields = append(fields, zap.String("rule_id", *payload.RuleID))
	}
	if payload.ToRole != nil {
		fields = append(fields, zap.String("to_role", string(*payload.ToRole)))
	}
	n.deliver(ctx, notice, fields...)
	return nil
}

// escalationRecipients prefers the named user; otherwise every active holder
// of the target role in the destination unit.
func (n *NotificationService) escalationRecipients(ctx context.Context, payload events.TicketEscalatedPayload) ([]string, error) {
	if payload.ToUserID != nil {
		return []string{*payload.ToUserID}, nil
	}
	if payload.ToRole == nil || n.users == nil {
		return nil, nil
	}
	users, err := n.users.ListActiveByUnitAndRole(ctx, payload.ToUnitID, *payload.ToRole)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (n *NotificationService) deliver(_ context.Context, notice Notice, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("event_type", string(notice.Event)),
		zap.String("ticket_id", notice.TicketID),
		zap.String("subject", notice.Subject),
		zap.Strings("user_ids", notice.UserIDs),
		zap.Strings("unit_ids", notice.UnitIDs),
	}, extra...)
	n.logger.Info("notification prepared", fields...)

	if from := strings.TrimSpace(n.cfg.EmailFrom); from != "" && len(notice.UserIDs) > 0 {
		n.logger.Debug("email notification stub", zap.String("from", from),
			zap.String("ticket_id", notice.TicketID), zap.Int("recipients", len(notice.UserIDs)))
	}
	if url := strings.TrimSpace(n.cfg.WebhookURL); url != "" {
		n.logger.Debug("webhook notification stub", zap.String("url", url),
			zap.String("ticket_id", notice.TicketID), zap.String("event_type", string(notice.Event)))
	}
}
