package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/repository"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

func (f *fixture) rule(t *testing.T, mutate func(*domain.EscalationRule)) *domain.EscalationRule {
	t.Helper()
	rule := &domain.EscalationRule{
		Name:      "urgent complaints",
		FromRole:  domain.RoleStaff,
		IsActive:  true,
		CreatedAt: f.clock.Now(),
	}
	if mutate != nil {
		mutate(rule)
	}
	require.NoError(t, f.store.Rules().Create(context.Background(), rule))
	return rule
}

func TestSweepScenarioConfidenceThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	supervisor := f.user(t, domain.RoleSupervisor, ward)
	rule := f.rule(t, func(r *domain.EscalationRule) {
		r.UrgencyThreshold = intPtr(3)
		r.ConfidenceThreshold = floatPtr(85)
		r.SLABreachEscalation = true
	})
	breached := func(confidence float64) func(*domain.Ticket) {
		return func(tk *domain.Ticket) {
			tk.UrgencyLevel = 4
			tk.ConfidenceScore = floatPtr(confidence)
			tk.SLADeadline = baseTime.Add(-time.Hour)
		}
	}
	confident := f.ticket(t, ward, breached(90))
	unsure := f.ticket(t, ward, breached(70))

	report, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	assert.Zero(t, report.Failed)

	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, confident.ID).Status)
	assert.Equal(t, domain.TicketStatusOpen, f.reload(t, unsure.ID).Status)

	records, err := f.store.Escalations().ListByTicket(ctx, confident.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, domain.EscalationAutomatic, record.EscalationType)
	assert.Equal(t, rule.ID, *record.RuleID)
	assert.Equal(t, ward.ID, record.ToUnitID)
	assert.Equal(t, supervisor.ID, *record.ToUserID)
	assert.Equal(t, domain.RoleSupervisor, *record.ToRole)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleSupervisor, ward)
	rule := f.rule(t, func(r *domain.EscalationRule) { r.UrgencyThreshold = intPtr(3) })
	ticket := f.ticket(t, ward, func(tk *domain.Ticket) { tk.UrgencyLevel = 5 })

	first, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)

	// put the ticket back in scope so the second sweep sees it as a candidate
	stored := f.reload(t, ticket.ID)
	require.NoError(t, f.lifecycle.RequestTransition(ctx, stored, domain.TicketStatusInProgress, systemChange("")))

	second, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Escalated)
	assert.Zero(t, second.Candidates)
	assert.Equal(t, domain.TicketStatusInProgress, f.reload(t, ticket.ID).Status)

	records, err := f.store.Escalations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	successes := 0
	for _, log := range f.store.ExecutionLogs() {
		if log.Outcome == domain.ExecutionSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)

	stats, err := f.store.Rules().GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ExecutionCount)
	assert.EqualValues(t, 1, stats.SuccessCount)
	require.NotNil(t, stats.LastExecutedAt)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleManager, ward)

	// nothing sits above DIRECTOR in the escalation chain
	broken := f.rule(t, func(r *domain.EscalationRule) {
		r.Name = "broken"
		r.FromRole = domain.RoleDirector
	})
	// no SUPERVISOR exists anywhere
	unstaffed := f.rule(t, func(r *domain.EscalationRule) {
		r.Name = "unstaffed"
		r.CreatedAt = baseTime.Add(time.Second)
	})
	working := f.rule(t, func(r *domain.EscalationRule) {
		r.Name = "to manager"
		r.FromRole = domain.RoleSupervisor
		r.CreatedAt = baseTime.Add(2 * time.Second)
	})
	ticket := f.ticket(t, ward, nil)

	report, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Rules)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 2, report.Failed)

	codes := map[string]string{}
	for _, failure := range report.Failures {
		codes[failure.RuleID] = failure.Code
	}
	assert.Equal(t, apperrors.CodeConfiguration, codes[broken.ID])
	assert.Equal(t, apperrors.CodeExecutionFailure, codes[unstaffed.ID])

	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, ticket.ID).Status)
	records, err := f.store.Escalations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, working.ID, *records[0].RuleID)

	outcomes := map[string]domain.ExecutionOutcome{}
	for _, log := range f.store.ExecutionLogs() {
		outcomes[log.RuleID] = log.Outcome
		if log.Outcome == domain.ExecutionFailed {
			assert.NotEmpty(t, *log.ErrorDetail)
		}
	}
	assert.Equal(t, domain.ExecutionFailed, outcomes[broken.ID])
	assert.Equal(t, domain.ExecutionFailed, outcomes[unstaffed.ID])
	assert.Equal(t, domain.ExecutionSuccess, outcomes[working.ID])

	stats, err := f.store.Rules().GetByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ExecutionCount)
	assert.EqualValues(t, 0, stats.SuccessCount)
}

func TestSweepRetriesFailedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	rule := f.rule(t, nil)
	f.ticket(t, ward, nil)

	for i := 0; i < 2; i++ {
		report, err := f.escalation.RunEscalationSweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
	}

	failed := 0
	for _, log := range f.store.ExecutionLogs() {
		if log.RuleID == rule.ID && log.Outcome == domain.ExecutionFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

// sweeper builds an escalation service over tickets with a small page size.
func (f *fixture) sweeper(tickets repository.TicketRepository, pageSize int) *EscalationService {
	return NewEscalationService(EscalationDependencies{
		TicketRepo:     tickets,
		UnitRepo:       f.store.Units(),
		UserRepo:       f.store.Users(),
		RuleRepo:       f.store.Rules(),
		EscalationRepo: f.store.Escalations(),
		ExecutionRepo:  f.store.Executions(),
		Lifecycle:      f.lifecycle,
		Access:         f.access,
		Hierarchy:      f.hierarchy,
		Matrix:         f.matrix,
		Dispatcher:     f.dispatcher,
		Clock:          f.clock,
		CandidateLimit: pageSize,
	})
}

func TestSweepReachesNewTicketsBehindEscalatedOnes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleSupervisor, ward)
	f.rule(t, func(r *domain.EscalationRule) { r.UrgencyThreshold = intPtr(5) })
	sweeper := f.sweeper(f.store.Tickets(), 2)

	urgent := func(offset time.Duration) func(*domain.Ticket) {
		return func(tk *domain.Ticket) {
			tk.UrgencyLevel = 5
			tk.CreatedAt = baseTime.Add(offset)
		}
	}
	older := []*domain.Ticket{f.ticket(t, ward, urgent(0)), f.ticket(t, ward, urgent(time.Minute))}
	first, err := sweeper.RunEscalationSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Escalated)

	// both are worked on again and fall back into the rule's scope
	for _, tk := range older {
		stored := f.reload(t, tk.ID)
		require.NoError(t, f.lifecycle.RequestTransition(ctx, stored, domain.TicketStatusInProgress, systemChange("")))
	}
	fresh := f.ticket(t, ward, urgent(time.Hour))

	for i := 0; i < 3; i++ {
		_, err := sweeper.RunEscalationSweep(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, fresh.ID).Status)
	for _, tk := range older {
		assert.Equal(t, domain.TicketStatusInProgress, f.reload(t, tk.ID).Status)
	}
}

func TestSweepPagesPastFailingCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hospital := f.unit(t, "hospital", nil)
	clinic := f.unit(t, "clinic", nil)
	f.user(t, domain.RoleSupervisor, hospital)
	f.rule(t, nil)
	sweeper := f.sweeper(f.store.Tickets(), 2)

	// clinic has nobody to escalate to, so these fail on every sweep
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Minute
		f.ticket(t, clinic, func(tk *domain.Ticket) { tk.CreatedAt = baseTime.Add(offset) })
	}
	staffed := f.ticket(t, hospital, func(tk *domain.Ticket) { tk.CreatedAt = baseTime.Add(time.Hour) })

	report, err := sweeper.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, staffed.ID).Status)
}

// lockstepTickets holds every sweep at the candidate query until all of
// them have read the same candidates.
type lockstepTickets struct {
	repository.TicketRepository
	wg *sync.WaitGroup
}

func (r lockstepTickets) ListCandidates(ctx context.Context, filter repository.CandidateFilter) ([]domain.Ticket, error) {
	page, err := r.TicketRepository.ListCandidates(ctx, filter)
	r.wg.Done()
	r.wg.Wait()
	return page, err
}

func TestConcurrentSweepsEscalateOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleSupervisor, ward)
	rule := f.rule(t, nil)
	ticket := f.ticket(t, ward, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	tickets := lockstepTickets{TicketRepository: f.store.Tickets(), wg: &wg}

	reports := make([]*SweepReport, 2)
	var done sync.WaitGroup
	for i := range reports {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			report, err := f.sweeper(tickets, 10).RunEscalationSweep(ctx)
			assert.NoError(t, err)
			reports[i] = report
		}(i)
	}
	done.Wait()

	require.NotNil(t, reports[0])
	require.NotNil(t, reports[1])
	assert.Equal(t, 1, reports[0].Escalated+reports[1].Escalated)
	assert.Equal(t, 1, reports[0].Skipped+reports[1].Skipped)

	records, err := f.store.Escalations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	history, err := f.store.History().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	logs := f.store.ExecutionLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ExecutionSuccess, logs[0].Outcome)

	stats, err := f.store.Rules().GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ExecutionCount)
	assert.EqualValues(t, 1, stats.SuccessCount)
}

func TestSweepTakesOverAbandonedClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleSupervisor, ward)
	rule := f.rule(t, nil)
	ticket := f.ticket(t, ward, nil)

	stuck := &domain.RuleExecutionLog{RuleID: rule.ID, TicketID: ticket.ID, ExecutedAt: baseTime}
	require.NoError(t, f.store.Executions().Claim(ctx, stuck, baseTime))

	report, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.TicketStatusOpen, f.reload(t, ticket.ID).Status)

	f.clock.Advance(time.Hour)
	report, err = f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	outcomes := map[string]domain.ExecutionOutcome{}
	for _, log := range f.store.ExecutionLogs() {
		outcomes[log.ID] = log.Outcome
	}
	assert.Equal(t, domain.ExecutionFailed, outcomes[stuck.ID])
	assert.Len(t, outcomes, 2)
}

func TestSweepTargetsNearestStaffedAncestor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hospital := f.unit(t, "hospital", nil)
	ward := f.unit(t, "ward", hospital)
	director := f.user(t, domain.RoleDirector, hospital)
	f.rule(t, func(r *domain.EscalationRule) {
		r.SkipLevels = true
		r.ToRole = domain.RoleDirector
	})
	ticket := f.ticket(t, ward, nil)

	var escalated []events.Event
	f.dispatcher.Subscribe(events.EventTicketEscalated, func(_ context.Context, e events.Event) error {
		escalated = append(escalated, e)
		return nil
	})

	_, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)

	records, err := f.store.Escalations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, hospital.ID, records[0].ToUnitID)
	assert.Equal(t, director.ID, *records[0].ToUserID)
	assert.Equal(t, []string{hospital.ID}, records[0].TargetUnitIDs)
	require.Len(t, escalated, 1)
	assert.Equal(t, domain.ActorTypeSystem, escalated[0].Actor.Type)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	ward := f.unit(t, "ward", nil)
	f.user(t, domain.RoleSupervisor, ward)
	f.rule(t, nil)
	f.ticket(t, ward, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.escalation.RunEscalationSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManualEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	radiology := f.unit(t, "radiology", nil)
	quality := f.unit(t, "quality", nil)
	staff := f.user(t, domain.RoleStaff, ward)
	radiologist := f.user(t, domain.RoleStaff, radiology)
	ticket := f.ticket(t, ward, nil)

	decision, err := f.access.ValidateTicketAccess(ctx, radiologist, ticket, ActionView)
	require.NoError(t, err)
	require.False(t, decision.Granted)

	record, err := f.escalation.ExecuteManualEscalation(ctx, staff, ManualEscalationInput{
		TicketID:  ticket.ID,
		ToUnitID:  radiology.ID,
		ToUserID:  &radiologist.ID,
		Reason:    "imaging needed",
		CCUnitIDs: []string{quality.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EscalationManual, record.EscalationType)
	assert.Equal(t, staff.ID, *record.FromUserID)
	assert.Equal(t, []string{radiology.ID}, record.TargetUnitIDs)
	assert.Equal(t, []string{quality.ID}, record.CCUnitIDs)
	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, ticket.ID).Status)

	decision, err = f.access.ValidateTicketAccess(ctx, radiologist, ticket, ActionView)
	require.NoError(t, err)
	assert.True(t, decision.Granted)

	// re-escalation keeps the status and appends a record
	again, err := f.escalation.ExecuteManualEscalation(ctx, radiologist, ManualEscalationInput{
		TicketID: ticket.ID,
		ToUnitID: quality.ID,
		Reason:   "quality review",
	})
	require.NoError(t, err)
	assert.NotEqual(t, record.ID, again.ID)
	records, err := f.escalation.ListTicketEscalations(ctx, staff, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, domain.TicketStatusEscalated, f.reload(t, ticket.ID).Status)
}

func TestManualEscalationRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	lab := f.unit(t, "lab", nil)
	closedUnit := f.unit(t, "closed-wing", nil)
	closedUnit.IsActive = false
	require.NoError(t, f.store.Units().Update(ctx, closedUnit))
	staff := f.user(t, domain.RoleStaff, ward)
	outsider := f.user(t, domain.RoleStaff, lab)
	ticket := f.ticket(t, ward, nil)
	resolved := f.ticket(t, ward, func(tk *domain.Ticket) { tk.Status = domain.TicketStatusResolved })

	cases := []struct {
		name  string
		actor *domain.User
		input ManualEscalationInput
		code  string
	}{
		{"missing reason", staff, ManualEscalationInput{TicketID: ticket.ID, ToUnitID: lab.ID}, apperrors.CodeValidation},
		{"unknown ticket", staff, ManualEscalationInput{TicketID: "ghost", ToUnitID: lab.ID, Reason: "x"}, apperrors.CodeNotFound},
		{"outsider", outsider, ManualEscalationInput{TicketID: ticket.ID, ToUnitID: lab.ID, Reason: "x"}, apperrors.CodeAccessDenied},
		{"unknown unit", staff, ManualEscalationInput{TicketID: ticket.ID, ToUnitID: "ghost", Reason: "x"}, apperrors.CodeNotFound},
		{"inactive unit", staff, ManualEscalationInput{TicketID: ticket.ID, ToUnitID: closedUnit.ID, Reason: "x"}, apperrors.CodeValidation},
		{"user outside target unit", staff, ManualEscalationInput{TicketID: ticket.ID, ToUnitID: lab.ID, ToUserID: &staff.ID, Reason: "x"}, apperrors.CodeValidation},
		{"resolved ticket", staff, ManualEscalationInput{TicketID: resolved.ID, ToUnitID: lab.ID, Reason: "x"}, apperrors.CodeInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.escalation.ExecuteManualEscalation(ctx, tc.actor, tc.input)
			assert.True(t, apperrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestGetEscalationAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	lab := f.unit(t, "lab", nil)
	staff := f.user(t, domain.RoleStaff, ward)
	labStaff := f.user(t, domain.RoleStaff, lab)
	ticket := f.ticket(t, ward, nil)

	record, err := f.escalation.ExecuteManualEscalation(ctx, staff, ManualEscalationInput{
		TicketID: ticket.ID, ToUnitID: lab.ID, Reason: "lab follow-up",
	})
	require.NoError(t, err)

	got, err := f.escalation.GetEscalation(ctx, labStaff, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = f.escalation.GetEscalation(ctx, staff, record.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied), "source unit is not a target")

	_, err = f.escalation.GetEscalation(ctx, labStaff, "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRuleAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hq := f.unit(t, "hq", nil)
	admin := f.user(t, domain.RoleAdmin, hq)
	staff := f.user(t, domain.RoleStaff, hq)

	input := RuleInput{
		Name:                " SLA breach ",
		ServiceTypes:        []domain.TicketType{domain.TicketTypeComplaint},
		PriorityLevels:      []domain.TicketPriority{domain.TicketPriorityHigh},
		SLABreachEscalation: true,
		FromRole:            domain.RoleStaff,
		IsActive:            true,
	}

	_, err := f.escalation.CreateRule(ctx, staff, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	rule, err := f.escalation.CreateRule(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, "SLA breach", rule.Name)

	require.NoError(t, f.store.Rules().IncrementCounters(ctx, rule.ID, true, baseTime))
	input.IsActive = false
	updated, err := f.escalation.UpdateRule(ctx, admin, rule.ID, input)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	stored, err := f.escalation.GetRule(ctx, admin, rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.ExecutionCount, "counters survive updates")

	active, err := f.escalation.ListRules(ctx, admin, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	invalid := []RuleInput{
		{Name: "", FromRole: domain.RoleStaff},
		{Name: "x", FromRole: "JANITOR"},
		{Name: "x", FromRole: domain.RoleStaff, SkipLevels: true},
		{Name: "x", FromRole: domain.RoleStaff, UrgencyThreshold: intPtr(7)},
		{Name: "x", FromRole: domain.RoleStaff, PriorityLevels: []domain.TicketPriority{"urgent"}},
	}
	for _, in := range invalid {
		_, err := f.escalation.CreateRule(ctx, admin, in)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "input %+v", in)
	}

	_, err = f.escalation.UpdateRule(ctx, admin, "ghost", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListRuleExecutions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	admin := f.user(t, domain.RoleAdmin, ward)
	staff := f.user(t, domain.RoleStaff, ward)
	rule := f.rule(t, nil)
	ticket := f.ticket(t, ward, nil)

	// first attempt fails for lack of a supervisor, the second succeeds
	_, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	f.user(t, domain.RoleSupervisor, ward)
	f.clock.Advance(time.Minute)
	_, err = f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)

	logs, err := f.escalation.ListRuleExecutions(ctx, admin, rule.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ExecutionSuccess, logs[0].Outcome, "newest first")
	assert.Equal(t, ticket.ID, logs[0].TicketID)
	require.NotNil(t, logs[0].EscalationID)
	assert.Equal(t, domain.ExecutionFailed, logs[1].Outcome)

	_, err = f.escalation.ListRuleExecutions(ctx, staff, rule.ID, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))
	_, err = f.escalation.ListRuleExecutions(ctx, admin, "ghost", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
