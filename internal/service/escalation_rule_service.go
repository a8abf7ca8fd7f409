package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// RuleInput carries the editable fields of an escalation rule.
type RuleInput struct {
	Name                string
	Description         string
	ServiceTypes        []domain.TicketType
	CategoryIDs         []string
	PriorityLevels      []domain.TicketPriority
	UrgencyThreshold    *int
	ConfidenceThreshold *float64
	SentimentThreshold  *float64
	SLABreachEscalation bool
	FromRole            domain.Role
	ToRole              domain.Role
	SkipLevels          bool
	IsActive            bool
}

func (s *EscalationService) requireRuleAdmin(actor *domain.User) error {
	if actor == nil || !actor.IsActive {
		return apperrors.NewAccessDenied(ReasonInactiveUser)
	}
	caps := s.matrix.Capabilities(actor.Role)
	if !caps.CanAccessAISettings && !caps.CanManageUnits {
		return apperrors.NewAccessDenied("missing rule administration capability")
	}
	return nil
}

func (s *EscalationService) validateRule(input *RuleInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	details := map[string]any{}

	if input.Name == "" {
		details["name"] = "required"
	}
	if !s.matrix.Known(input.FromRole) {
		details["from_role"] = "unknown role"
	}
	if input.ToRole != "" && !s.matrix.Known(input.ToRole) {
		details["to_role"] = "unknown role"
	}
	if input.SkipLevels && input.ToRole == "" {
		details["to_role"] = "required when skip_levels is set"
	}
	for _, t := range input.ServiceTypes {
		switch t {
		case domain.TicketTypeInformation, domain.TicketTypeComplaint, domain.TicketTypeSuggestion, domain.TicketTypeSatisfaction:
		default:
			details["service_types"] = "unknown ticket type " + string(t)
		}
	}
	for _, p := range input.PriorityLevels {
		if !p.Valid() {
			details["priority_levels"] = "unknown priority " + string(p)
		}
	}
	if u := input.UrgencyThreshold; u != nil && (*u < 1 || *u > 5) {
		details["urgency_threshold"] = "must be between 1 and 5"
	}
	if c := input.ConfidenceThreshold; c != nil && (*c < 0 || *c > 100) {
		details["confidence_threshold"] = "must be between 0 and 100"
	}
	if v := input.SentimentThreshold; v != nil && (*v < -1 || *v > 1) {
		details["sentiment_threshold"] = "must be between -1 and 1"
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid escalation rule", details)
	}
	return nil
}

func applyRuleInput(rule *domain.EscalationRule, input RuleInput) {
	rule.Name = input.Name
	rule.Description = input.Description
	rule.ServiceTypes = input.ServiceTypes
	rule.CategoryIDs = input.CategoryIDs
	rule.PriorityLevels = input.PriorityLevels
	rule.UrgencyThreshold = input.UrgencyThreshold
	rule.ConfidenceThreshold = input.ConfidenceThreshold
	rule.SentimentThreshold = input.SentimentThreshold
	rule.SLABreachEscalation = input.SLABreachEscalation
	rule.FromRole = input.FromRole
	rule.ToRole = input.ToRole
	rule.SkipLevels = input.SkipLevels
	rule.IsActive = input.IsActive
}

// CreateRule stores a new escalation rule.
func (s *EscalationService) CreateRule(ctx context.Context, actor *domain.User, input RuleInput) (*domain.EscalationRule, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validateRule(&input); err != nil {
		return nil, err
	}
	rule := &domain.EscalationRule{}
	applyRuleInput(rule, input)
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("escalation rule created", zap.String("rule_id", rule.ID), zap.String("actor_id", actor.ID))
	return rule, nil
}

// UpdateRule replaces the editable fields of a rule. Counters are kept.
func (s *EscalationService) UpdateRule(ctx context.Context, actor *domain.User, id string, input RuleInput) (*domain.EscalationRule, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validateRule(&input); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRuleInput(rule, input)
	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("escalation rule", map[string]any{"rule_id": id})
		}
		return nil, err
	}
	s.logger.Info("escalation rule updated", zap.String("rule_id", rule.ID), zap.String("actor_id", actor.ID))
	return rule, nil
}

// GetRule returns one rule.
func (s *EscalationService) GetRule(ctx context.Context, actor *domain.User, id string) (*domain.EscalationRule, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	return s.loadRule(ctx, id)
}

// ListRules returns all rules, or only active ones.
func (s *EscalationService) ListRules(ctx context.Context, actor *domain.User, activeOnly bool) ([]domain.EscalationRule, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	return s.rules.List(ctx, activeOnly)
}

// ListRuleExecutions returns the newest execution logs of a rule.
func (s *EscalationService) ListRuleExecutions(ctx context.Context, actor *domain.User, id string, limit int) ([]domain.RuleExecutionLog, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadRule(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.executions.ListByRule(ctx, id, limit)
}

// TriggerSweep runs a sweep on behalf of an administrator.
func (s *EscalationService) TriggerSweep(ctx context.Context, actor *domain.User) (*SweepReport, error) {
	if err := s.requireRuleAdmin(actor); err != nil {
		return nil, err
	}
	return s.RunEscalationSweep(ctx)
}

func (s *EscalationService) loadRule(ctx context.Context, id string) (*domain.EscalationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("escalation rule", map[string]any{"rule_id": id})
		}
		return nil, err
	}
	return rule, nil
}
