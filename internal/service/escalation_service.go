package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/policy"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// EscalationService runs rule sweeps and manual escalations.
type EscalationService struct {
	tickets        repository.TicketRepository
	units          repository.UnitRepository
	users          repository.UserRepository
	rules          repository.EscalationRuleRepository
	escalations    repository.EscalationRepository
	executions     repository.RuleExecutionRepository
	lifecycle      *LifecycleService
	access         *AccessService
	hierarchy      *UnitHierarchy
	matrix         *policy.Matrix
	dispatcher     events.Dispatcher
	clock          clock.Clock
	limiter        *rate.Limiter
	metrics        *observability.Metrics
	logger         *zap.Logger
	candidateLimit int
	claimTTL       time.Duration
}

// EscalationDependencies bundles collaborators for EscalationService.
type EscalationDependencies struct {
	TicketRepo     repository.TicketRepository
	UnitRepo       repository.UnitRepository
	UserRepo       repository.UserRepository
	RuleRepo       repository.EscalationRuleRepository
	EscalationRepo repository.EscalationRepository
	ExecutionRepo  repository.RuleExecutionRepository
	Lifecycle      *LifecycleService
	Access         *AccessService
	Hierarchy      *UnitHierarchy
	Matrix         *policy.Matrix
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	// Limiter paces candidate processing during a sweep. Nil means unpaced.
	Limiter *rate.Limiter
	// CandidateLimit is the page size of the candidate scan.
	CandidateLimit int
	// ClaimTTL is how long a pending rule execution blocks other sweeps
	// before it counts as abandoned.
	ClaimTTL time.Duration
}

const (
	defaultCandidatePage = 500
	defaultClaimTTL      = 10 * time.Minute
)

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	matrix := deps.Matrix
	if matrix == nil {
		matrix = policy.Default()
	}
	limit := deps.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidatePage
	}
	claimTTL := deps.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &EscalationService{
		tickets:        deps.TicketRepo,
		units:          deps.UnitRepo,
		users:          deps.UserRepo,
		rules:          deps.RuleRepo,
		escalations:    deps.EscalationRepo,
		executions:     deps.ExecutionRepo,
		lifecycle:      deps.Lifecycle,
		access:         deps.Access,
		hierarchy:      deps.Hierarchy,
		matrix:         matrix,
		dispatcher:     deps.Dispatcher,
		clock:          clk,
		limiter:        deps.Limiter,
		metrics:        deps.Metrics,
		logger:         observability.OrNop(deps.Logger),
		candidateLimit: limit,
		claimTTL:       claimTTL,
	}
}

// SweepFailure describes one candidate that could not be escalated.
type SweepFailure struct {
	RuleID   string `json:"rule_id"`
	TicketID string `json:"ticket_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Rules      int            `json:"rules"`
	Candidates int            `json:"candidates"`
	Escalated  int            `json:"escalated"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Failures   []SweepFailure `json:"failures,omitempty"`
}

func (r *SweepReport) fail(ruleID, ticketID string, err error) {
	r.Failed++
	domainErr := apperrors.ToDomainError(err)
	r.Failures = append(r.Failures, SweepFailure{
		RuleID:   ruleID,
		TicketID: ticketID,
		Code:     domainErr.Code,
		Message:  err.Error(),
	})
}

// RunEscalationSweep evaluates every active rule against its candidates.
// A failing candidate is logged and reported; the sweep carries on. Only
// a previous successful execution suppresses a rule for a ticket, so
// failed attempts are retried on every sweep.
func (s *EscalationService) RunEscalationSweep(ctx context.Context) (*SweepReport, error) {
	began := time.Now()
	report := &SweepReport{StartedAt: s.clock.Now()}
	defer func() {
		report.FinishedAt = s.clock.Now()
		s.metrics.ObserveSweep(time.Since(began))
	}()

	rules, err := s.rules.List(ctx, true)
	if err != nil {
		return report, fmt.Errorf("list active rules: %w", err)
	}
	report.Rules = len(rules)

	for i := range rules {
		if err := s.sweepRule(ctx, &rules[i], report); err != nil {
			return report, err
		}
	}

	s.logger.Info("escalation sweep finished",
		zap.Int("rules", report.Rules),
		zap.Int("candidates", report.Candidates),
		zap.Int("escalated", report.Escalated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// sweepRule pages through every candidate of rule. It returns an error
// only when ctx is done.
func (s *EscalationService) sweepRule(ctx context.Context, rule *domain.EscalationRule, report *SweepReport) error {
	now := s.clock.Now()
	filter := candidateFilter(rule, now, s.candidateLimit)
	for {
		page, err := s.tickets.ListCandidates(ctx, filter)
		if err != nil {
			s.logger.Error("candidate query failed", zap.String("rule_id", rule.ID), zap.Error(err))
			report.fail(rule.ID, "", err)
			return ctx.Err()
		}
		for i := range page {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
			s.sweepCandidate(ctx, rule, &page[i], now, report)
		}
		if len(page) < filter.Limit {
			return nil
		}
		filter.After = repository.CursorAfter(page)
	}
}

func candidateFilter(rule *domain.EscalationRule, now time.Time, limit int) repository.CandidateFilter {
	filter := repository.CandidateFilter{
		Statuses:          []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		Types:             rule.ServiceTypes,
		CategoryIDs:       rule.CategoryIDs,
		Priorities:        rule.PriorityLevels,
		MinUrgency:        rule.UrgencyThreshold,
		MinConfidence:     rule.ConfidenceThreshold,
		MaxSentiment:      rule.SentimentThreshold,
		SkipSucceededRule: rule.ID,
		Limit:             limit,
	}
	if rule.SLABreachEscalation {
		deadline := now
		filter.DeadlineBefore = &deadline
	}
	return filter
}

// sweepCandidate claims the (rule, ticket) pair before any side effect so
// a concurrent sweep holding or having settled the same pair backs off.
func (s *EscalationService) sweepCandidate(ctx context.Context, rule *domain.EscalationRule, candidate *domain.Ticket, now time.Time, report *SweepReport) {
	if !rule.Matches(candidate, now) {
		return
	}
	report.Candidates++

	claim := &domain.RuleExecutionLog{RuleID: rule.ID, TicketID: candidate.ID, ExecutedAt: s.clock.Now()}
	if err := s.executions.Claim(ctx, claim, claim.ExecutedAt.Add(-s.claimTTL)); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			report.Skipped++
			return
		}
		s.logger.Error("execution claim failed",
			zap.String("rule_id", rule.ID), zap.String("ticket_id", candidate.ID), zap.Error(err))
		report.fail(rule.ID, candidate.ID, err)
		return
	}

	// the candidate page may predate another sweep's work on this ticket
	ticket, err := s.tickets.GetByID(ctx, candidate.ID)
	if err == nil && !rule.Matches(ticket, now) {
		if err := s.executions.Release(ctx, claim); err != nil {
			s.logger.Warn("execution claim release failed", zap.String("log_id", claim.ID), zap.Error(err))
		}
		report.Skipped++
		return
	}

	var record *domain.EscalationRecord
	execErr := err
	if execErr == nil {
		record, execErr = s.executeRule(ctx, rule, ticket)
	}
	s.settleExecution(ctx, rule, claim, record, execErr)
	if execErr != nil {
		s.logger.Warn("automatic escalation failed",
			zap.String("rule_id", rule.ID), zap.String("ticket_id", candidate.ID), zap.Error(execErr))
		report.fail(rule.ID, candidate.ID, execErr)
		return
	}
	report.Escalated++
}

func (s *EscalationService) executeRule(ctx context.Context, rule *domain.EscalationRule, ticket *domain.Ticket) (*domain.EscalationRecord, error) {
	role, err := s.resolveTargetRole(rule)
	if err != nil {
		return nil, err
	}
	unit, user, err := s.resolveTarget(ctx, ticket.UnitID, role)
	if err != nil {
		return nil, err
	}

	if err := s.lifecycle.Escalate(ctx, ticket, systemChange(fmt.Sprintf("escalated by rule %q", rule.Name))); err != nil {
		if apperrors.HasCode(err, apperrors.CodeExecutionFailure) {
			return nil, err
		}
		return nil, apperrors.NewExecutionFailure(err, map[string]any{"step": "transition"})
	}

	ruleID := rule.ID
	fromUnit := ticket.UnitID
	toUser := user.ID
	record := &domain.EscalationRecord{
		TicketID:       ticket.ID,
		FromUnitID:     &fromUnit,
		ToUnitID:       unit.ID,
		ToUserID:       &toUser,
		ToRole:         &role,
		Reason:         fmt.Sprintf("Auto-escalated by rule %q", rule.Name),
		EscalationType: domain.EscalationAutomatic,
		RuleID:         &ruleID,
		TargetUnitIDs:  []string{unit.ID},
		CreatedAt:      s.clock.Now(),
	}
	if err := s.escalations.Create(ctx, record); err != nil {
		return nil, apperrors.NewExecutionFailure(err, map[string]any{"step": "record"})
	}
	s.publishEscalated(ctx, record, StatusChange{ActorType: domain.ActorTypeSystem})
	return record, nil
}

// resolveTargetRole uses to_role when skip_levels is set, otherwise the
// role one level above from_role.
func (s *EscalationService) resolveTargetRole(rule *domain.EscalationRule) (domain.Role, error) {
	if rule.SkipLevels {
		if rule.ToRole == "" || !s.matrix.Known(rule.ToRole) {
			return "", apperrors.NewConfigurationError("rule skips levels without a known to_role",
				map[string]any{"rule_id": rule.ID, "to_role": rule.ToRole})
		}
		return rule.ToRole, nil
	}
	next, ok := s.matrix.NextEscalationRole(rule.FromRole)
	if !ok {
		return "", apperrors.NewConfigurationError("no escalation role above from_role",
			map[string]any{"rule_id": rule.ID, "from_role": rule.FromRole})
	}
	return next, nil
}

// resolveTarget picks the nearest unit, starting at the ticket's own,
// that has an active user holding role.
func (s *EscalationService) resolveTarget(ctx context.Context, unitID string, role domain.Role) (*domain.Unit, *domain.User, error) {
	chain, err := s.hierarchy.Ancestors(ctx, unitID)
	if err != nil {
		return nil, nil, apperrors.NewExecutionFailure(err, map[string]any{"step": "hierarchy"})
	}
	for i := range chain {
		unit := &chain[i]
		if !unit.IsActive {
			continue
		}
		users, err := s.users.ListActiveByUnitAndRole(ctx, unit.ID, role)
		if err != nil {
			return nil, nil, apperrors.NewExecutionFailure(err, map[string]any{"step": "users"})
		}
		if len(users) > 0 {
			return unit, &users[0], nil
		}
	}
	return nil, nil, apperrors.NewExecutionFailure(
		fmt.Errorf("no active %s found above unit %s", role, unitID),
		map[string]any{"unit_id": unitID, "role": role})
}

// settleExecution finalizes the claimed log and bumps the rule counters.
// Counters only move once the log is settled. They are telemetry: they are
// not transactional with the escalation and may drift under concurrent
// sweeps.
func (s *EscalationService) settleExecution(ctx context.Context, rule *domain.EscalationRule, claim *domain.RuleExecutionLog, record *domain.EscalationRecord, execErr error) {
	now := s.clock.Now()
	claim.ExecutedAt = now
	claim.Outcome = domain.ExecutionSuccess
	if execErr != nil {
		detail := execErr.Error()
		claim.Outcome = domain.ExecutionFailed
		claim.ErrorDetail = &detail
	} else {
		claim.EscalationID = &record.ID
	}
	s.metrics.RecordRuleExecution(string(claim.Outcome))

	if err := s.executions.Settle(ctx, claim); err != nil {
		s.logger.Error("execution log settle failed",
			zap.String("rule_id", rule.ID), zap.String("ticket_id", claim.TicketID),
			zap.String("outcome", string(claim.Outcome)), zap.Error(err))
		return
	}
	if err := s.rules.IncrementCounters(ctx, rule.ID, execErr == nil, now); err != nil {
		s.logger.Warn("rule counter update failed", zap.String("rule_id", rule.ID), zap.Error(err))
	}
}

// ManualEscalationInput describes an operator-initiated escalation.
type ManualEscalationInput struct {
	TicketID      string
	ToUnitID      string
	ToUserID      *string
	ToRole        *domain.Role
	Reason        string
	TargetUnitIDs []string
	CCUnitIDs     []string
}

// ExecuteManualEscalation forwards a ticket to another unit. A ticket
// already in ESCALATED keeps its status and gains another record.
func (s *EscalationService) ExecuteManualEscalation(ctx context.Context, actor *domain.User, input ManualEscalationInput) (*domain.EscalationRecord, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	details := map[string]any{}
	if input.ToUnitID == "" {
		details["to_unit_id"] = "required"
	}
	if input.Reason == "" {
		details["reason"] = "required"
	}
	if input.ToRole != nil && !s.matrix.Known(*input.ToRole) {
		details["to_role"] = "unknown role"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid escalation", details)
	}

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
		}
		return nil, err
	}
	if err := s.access.RequireTicketAccess(ctx, actor, ticket, ActionEscalate); err != nil {
		return nil, err
	}
	if !s.matrix.Capabilities(actor.Role).CanEscalate {
		return nil, apperrors.NewAccessDenied("missing can_escalate")
	}

	if err := s.requireActiveUnit(ctx, input.ToUnitID); err != nil {
		return nil, err
	}
	for _, unitID := range append(append([]string{}, input.TargetUnitIDs...), input.CCUnitIDs...) {
		if err := s.requireActiveUnit(ctx, unitID); err != nil {
			return nil, err
		}
	}
	if input.ToUserID != nil {
		target, err := s.users.GetByID(ctx, *input.ToUserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": *input.ToUserID})
			}
			return nil, err
		}
		if !target.IsActive || target.UnitID != input.ToUnitID {
			return nil, apperrors.NewValidationError("target user must be active and belong to the target unit",
				map[string]any{"to_user_id": target.ID})
		}
	}

	change := userChange(actor, input.Reason)
	if ticket.Status != domain.TicketStatusEscalated {
		if err := s.lifecycle.Escalate(ctx, ticket, change); err != nil {
			return nil, err
		}
	}

	fromUnit := ticket.UnitID
	fromUser := actor.ID
	record := &domain.EscalationRecord{
		TicketID:       ticket.ID,
		FromUnitID:     &fromUnit,
		FromUserID:     &fromUser,
		ToUnitID:       input.ToUnitID,
		ToUserID:       input.ToUserID,
		ToRole:         input.ToRole,
		Reason:         input.Reason,
		EscalationType: domain.EscalationManual,
		TargetUnitIDs:  dedupe(append([]string{input.ToUnitID}, input.TargetUnitIDs...)),
		CCUnitIDs:      dedupe(input.CCUnitIDs),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.escalations.Create(ctx, record); err != nil {
		return nil, err
	}
	s.publishEscalated(ctx, record, change)
	return record, nil
}

func (s *EscalationService) requireActiveUnit(ctx context.Context, unitID string) error {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("unit", map[string]any{"unit_id": unitID})
		}
		return err
	}
	if !unit.IsActive {
		return apperrors.NewValidationError("unit is inactive", map[string]any{"unit_id": unitID})
	}
	return nil
}

// GetEscalation returns a record the actor may see.
func (s *EscalationService) GetEscalation(ctx context.Context, actor *domain.User, id string) (*domain.EscalationRecord, error) {
	record, err := s.escalations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("escalation", map[string]any{"escalation_id": id})
		}
		return nil, err
	}
	if decision := s.access.ValidateEscalationAccess(ctx, actor, record); !decision.Granted {
		return nil, apperrors.NewAccessDenied(decision.Reason)
	}
	return record, nil
}

// ListTicketEscalations returns the escalation trail of a visible ticket.
func (s *EscalationService) ListTicketEscalations(ctx context.Context, actor *domain.User, ticketID string) ([]domain.EscalationRecord, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if err := s.access.RequireTicketAccess(ctx, actor, ticket, ActionView); err != nil {
		return nil, err
	}
	return s.escalations.ListByTicket(ctx, ticketID)
}

func (s *EscalationService) publishEscalated(ctx context.Context, record *domain.EscalationRecord, change StatusChange) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketEscalated,
		TicketID:  record.TicketID,
		Actor:     eventActor(change),
		Timestamp: record.CreatedAt,
		Payload: events.TicketEscalatedPayload{
			EscalationID:   record.ID,
			EscalationType: record.EscalationType,
			RuleID:         record.RuleID,
			ToUnitID:       record.ToUnitID,
			ToUserID:       record.ToUserID,
			ToRole:         record.ToRole,
			Reason:         record.Reason,
			TargetUnitIDs:  record.TargetUnitIDs,
			CCUnitIDs:      record.CCUnitIDs,
		},
	})
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
