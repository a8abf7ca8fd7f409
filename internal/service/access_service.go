package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/policy"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

// Action names what an actor intends to do with a resource.
type Action string

const (
	ActionView         Action = "view"
	ActionUpdateStatus Action = "update_status"
	ActionEscalate     Action = "escalate"
)

// Reasons recorded on access decisions.
const (
	ReasonInactiveUser     = "inactive_user"
	ReasonGlobalAccess     = "global_access"
	ReasonUnitScope        = "unit_scope"
	ReasonEscalationTarget = "escalation_target"
	ReasonEscalationCC     = "escalation_cc"
	ReasonNoMatchingScope  = "no_matching_scope"
)

const (
	resourceTicket     = "ticket"
	resourceEscalation = "escalation"
)

// AccessDecision is the outcome of an access check.
type AccessDecision struct {
	Granted bool
	Reason  string
}

// AccessService decides whether users may see or act on tickets and
// escalations.
type AccessService struct {
	policy      *policy.AccessPolicy
	hierarchy   *UnitHierarchy
	escalations repository.EscalationRepository
	audit       *AuditTrail
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// AccessDependencies bundles collaborators for AccessService.
type AccessDependencies struct {
	Policy         *policy.AccessPolicy
	Hierarchy      *UnitHierarchy
	EscalationRepo repository.EscalationRepository
	Audit          *AuditTrail
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewAccessService constructs the service.
func NewAccessService(deps AccessDependencies) *AccessService {
	p := deps.Policy
	if p == nil {
		p = policy.NewAccessPolicy(nil, nil)
	}
	return &AccessService{
		policy:      p,
		hierarchy:   deps.Hierarchy,
		escalations: deps.EscalationRepo,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      observability.OrNop(deps.Logger),
	}
}

// ValidateTicketAccess evaluates, in order: inactive user, global view,
// unit subtree, escalation target and escalation carbon copy.
func (s *AccessService) ValidateTicketAccess(ctx context.Context, user *domain.User, ticket *domain.Ticket, action Action) (AccessDecision, error) {
	decision, err := s.decideTicket(ctx, user, ticket)
	if err != nil {
		return AccessDecision{}, err
	}
	s.observe(ctx, user, action, resourceTicket, ticket.ID, &ticket.UnitID, decision)
	return decision, nil
}

func (s *AccessService) decideTicket(ctx context.Context, user *domain.User, ticket *domain.Ticket) (AccessDecision, error) {
	if user == nil || !user.IsActive {
		return AccessDecision{Reason: ReasonInactiveUser}, nil
	}
	if s.policy.HasGlobalView(user.Role) {
		return AccessDecision{Granted: true, Reason: ReasonGlobalAccess}, nil
	}

	inScope, err := s.hierarchy.WithinSubtree(ctx, user.UnitID, ticket.UnitID)
	if err != nil {
		return AccessDecision{}, err
	}
	if inScope {
		return AccessDecision{Granted: true, Reason: ReasonUnitScope}, nil
	}

	records, err := s.escalations.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return AccessDecision{}, err
	}
	for i := range records {
		if records[i].TargetsUnit(user.UnitID) {
			return AccessDecision{Granted: true, Reason: ReasonEscalationTarget}, nil
		}
	}
	for i := range records {
		if records[i].CopiesUnit(user.UnitID) {
			return AccessDecision{Granted: true, Reason: ReasonEscalationCC}, nil
		}
	}
	return AccessDecision{Reason: ReasonNoMatchingScope}, nil
}

// ValidateEscalationAccess grants global viewers and members of a unit the
// escalation targets.
func (s *AccessService) ValidateEscalationAccess(ctx context.Context, user *domain.User, record *domain.EscalationRecord) AccessDecision {
	var decision AccessDecision
	switch {
	case user == nil || !user.IsActive:
		decision = AccessDecision{Reason: ReasonInactiveUser}
	case s.policy.HasGlobalView(user.Role):
		decision = AccessDecision{Granted: true, Reason: ReasonGlobalAccess}
	case record.TargetsUnit(user.UnitID):
		decision = AccessDecision{Granted: true, Reason: ReasonEscalationTarget}
	default:
		decision = AccessDecision{Reason: ReasonNoMatchingScope}
	}
	s.observe(ctx, user, ActionView, resourceEscalation, record.ID, &record.ToUnitID, decision)
	return decision
}

// RequireTicketAccess turns a Denied decision into an AccessDenied error.
func (s *AccessService) RequireTicketAccess(ctx context.Context, user *domain.User, ticket *domain.Ticket, action Action) error {
	decision, err := s.ValidateTicketAccess(ctx, user, ticket, action)
	if err != nil {
		return err
	}
	if !decision.Granted {
		return apperrors.NewAccessDenied(decision.Reason)
	}
	return nil
}

// observe audits every denial of an identified user and every granted read.
func (s *AccessService) observe(ctx context.Context, user *domain.User, action Action, resourceType, resourceID string, unitID *string, decision AccessDecision) {
	result := "granted"
	if !decision.Granted {
		result = "denied"
	}
	s.metrics.RecordAccessDecision(string(action), result)

	if user == nil {
		return
	}
	if decision.Granted && action != ActionView {
		return
	}
	if !decision.Granted {
		s.logger.Info("access denied",
			zap.String("user_id", user.ID),
			zap.String("action", string(action)),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.String("reason", decision.Reason))
	}

	actorID := user.ID
	role := user.Role
	s.audit.Record(ctx, domain.AuditLogEntry{
		ActorID:      &actorID,
		ActorRole:    &role,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		UnitID:       unitID,
		Unauthorized: !decision.Granted,
		Reason:       decision.Reason,
	})
}
