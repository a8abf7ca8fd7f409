package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/clock"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	"github.com/spec-kit/ticket-escalation/internal/policy"
	"github.com/spec-kit/ticket-escalation/internal/repository/memstore"
)

var baseTime = time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memstore.Store
	clock      *clock.Manual
	dispatcher events.Dispatcher
	matrix     *policy.Matrix
	hierarchy  *UnitHierarchy
	audit      *AuditTrail
	access     *AccessService
	lifecycle  *LifecycleService
	tickets    *TicketService
	escalation *EscalationService
}

func newFixture(t *testing.T, globalRoles ...domain.Role) *fixture {
	t.Helper()
	f := &fixture{
		store:      memstore.New(),
		clock:      clock.Fixed(baseTime),
		dispatcher: events.NewInMemoryDispatcher(),
		matrix:     policy.Default(),
	}
	f.hierarchy = NewUnitHierarchy(f.store.Units())
	f.audit = NewAuditTrail(f.store.Audit(), f.clock, nil)
	f.access = NewAccessService(AccessDependencies{
		Policy:         policy.NewAccessPolicy(f.matrix, globalRoles),
		Hierarchy:      f.hierarchy,
		EscalationRepo: f.store.Escalations(),
		Audit:          f.audit,
	})
	f.lifecycle = NewLifecycleService(LifecycleDependencies{
		TicketRepo:  f.store.Tickets(),
		HistoryRepo: f.store.History(),
		Dispatcher:  f.dispatcher,
		Clock:       f.clock,
	})
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   f.store.Tickets(),
		UnitRepo:     f.store.Units(),
		CategoryRepo: f.store.Categories(),
		HistoryRepo:  f.store.History(),
		Lifecycle:    f.lifecycle,
		Access:       f.access,
		Matrix:       f.matrix,
		SLA:          NewSLACalculator(DefaultSLA),
		Numbers:      NewTicketNumberGenerator(f.store.Sequence(), f.clock, time.UTC),
		Dispatcher:   f.dispatcher,
		Clock:        f.clock,
	})
	f.escalation = NewEscalationService(EscalationDependencies{
		TicketRepo:     f.store.Tickets(),
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
	})
	return f
}

func (f *fixture) unit(t *testing.T, id string, parent *domain.Unit) *domain.Unit {
	t.Helper()
	unit := &domain.Unit{ID: id, Name: id, Code: id, IsActive: true}
	if parent != nil {
		parentID := parent.ID
		unit.ParentID = &parentID
	}
	require.NoError(t, f.store.Units().Create(context.Background(), unit))
	return unit
}

func (f *fixture) user(t *testing.T, role domain.Role, unit *domain.Unit) *domain.User {
	t.Helper()
	id := uuid.NewString()
	user := &domain.User{
		ID:       id,
		Name:     string(role),
		Email:    id + "@hospital.test",
		Role:     role,
		UnitID:   unit.ID,
		IsActive: true,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

// ticket stores a ticket directly, bypassing creation rules.
func (f *fixture) ticket(t *testing.T, unit *domain.Unit, mutate func(*domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		TicketNumber: "TKT-" + uuid.NewString(),
		Type:         domain.TicketTypeComplaint,
		Title:        "Long wait at the pharmacy",
		UnitID:       unit.ID,
		Status:       domain.TicketStatusOpen,
		Priority:     domain.TicketPriorityMedium,
		UrgencyLevel: 1,
		Source:       domain.TicketSourceWeb,
		SLADeadline:  baseTime.Add(DefaultSLA),
		CreatedAt:    f.clock.Now(),
	}
	if mutate != nil {
		mutate(ticket)
	}
	require.NoError(t, f.store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func (f *fixture) reload(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func intPtr(v int) *int                  { return &v }
func floatPtr(v float64) *float64        { return &v }
func rolePtr(r domain.Role) *domain.Role { return &r }
