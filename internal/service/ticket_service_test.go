package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
	apperrors "github.com/spec-kit/ticket-escalation/pkg/util"
)

func TestTicketNumbersSameDay(t *testing.T) {
	f := newFixture(t)
	ward := f.unit(t, "ward", nil)

	for i := 1; i <= 5; i++ {
		ticket, err := f.tickets.CreateTicket(context.Background(), nil, TicketCreateInput{
			Title:  fmt.Sprintf("complaint %d", i),
			UnitID: ward.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("TKT-20240610-%05d", i), ticket.TicketNumber)
		f.clock.Advance(time.Minute)
	}

	f.clock.Set(baseTime.AddDate(0, 0, 1))
	ticket, err := f.tickets.CreateTicket(context.Background(), nil, TicketCreateInput{Title: "next day", UnitID: ward.ID})
	require.NoError(t, err)
	assert.Equal(t, "TKT-20240611-00001", ticket.TicketNumber)
}

func TestTicketNumberUsesLocation(t *testing.T) {
	f := newFixture(t)
	jakarta := time.FixedZone("WIB", 7*60*60)
	f.clock.Set(time.Date(2024, time.June, 10, 20, 0, 0, 0, time.UTC))
	gen := NewTicketNumberGenerator(f.store.Sequence(), f.clock, jakarta)

	number, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TKT-20240611-00001", number)
}

type stuckSequence struct{ values []int64 }

func (s *stuckSequence) NextDaily(context.Context, time.Time) (int64, error) {
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

func TestCreateTicketRetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	ward := f.unit(t, "ward", nil)
	f.ticket(t, ward, func(tk *domain.Ticket) { tk.TicketNumber = "TKT-20240610-00001" })

	f.tickets.numbers = NewTicketNumberGenerator(&stuckSequence{values: []int64{1, 2}}, f.clock, time.UTC)
	ticket, err := f.tickets.CreateTicket(context.Background(), nil, TicketCreateInput{Title: "retry", UnitID: ward.ID})
	require.NoError(t, err)
	assert.Equal(t, "TKT-20240610-00002", ticket.TicketNumber)

	f.tickets.numbers = NewTicketNumberGenerator(&stuckSequence{values: []int64{1}}, f.clock, time.UTC)
	_, err = f.tickets.CreateTicket(context.Background(), nil, TicketCreateInput{Title: "stuck", UnitID: ward.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestCreateTicketDefaultsAndDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	ward.SLAHours = intPtr(4)
	require.NoError(t, f.store.Units().Update(ctx, ward))
	category := &domain.Category{Name: "billing", DefaultSLAHours: intPtr(48), IsActive: true}
	require.NoError(t, f.store.Categories().Create(ctx, category))

	var created []events.Event
	f.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})

	ticket, err := f.tickets.CreateTicket(ctx, nil, TicketCreateInput{
		Title:      "  Billing error  ",
		UnitID:     ward.ID,
		CategoryID: &category.ID,
		Priority:   domain.TicketPriorityCritical,
	})
	require.NoError(t, err)

	assert.Equal(t, "Billing error", ticket.Title)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority, "public submissions cannot pick priority")
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketSourceWeb, ticket.Source)
	assert.Equal(t, 1, ticket.UrgencyLevel)
	assert.Equal(t, baseTime.Add(4*time.Hour), ticket.SLADeadline)
	require.Len(t, created, 1)
	assert.Equal(t, domain.ActorTypePublic, created[0].Actor.Type)
}

func TestCreateTicketPriorityCap(t *testing.T) {
	f := newFixture(t)
	ward := f.unit(t, "ward", nil)
	staff := f.user(t, domain.RoleStaff, ward)
	supervisor := f.user(t, domain.RoleSupervisor, ward)
	ctx := context.Background()

	_, err := f.tickets.CreateTicket(ctx, staff, TicketCreateInput{Title: "x", UnitID: ward.ID, Priority: domain.TicketPriorityHigh})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	ticket, err := f.tickets.CreateTicket(ctx, supervisor, TicketCreateInput{Title: "x", UnitID: ward.ID, Priority: domain.TicketPriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ward := f.unit(t, "ward", nil)
	ctx := context.Background()

	cases := map[string]struct {
		input TicketCreateInput
		code  string
	}{
		"missing title":    {TicketCreateInput{UnitID: ward.ID}, apperrors.CodeValidation},
		"bad urgency":      {TicketCreateInput{Title: "x", UnitID: ward.ID, UrgencyLevel: 9}, apperrors.CodeValidation},
		"bad confidence":   {TicketCreateInput{Title: "x", UnitID: ward.ID, ConfidenceScore: floatPtr(120)}, apperrors.CodeValidation},
		"bad sentiment":    {TicketCreateInput{Title: "x", UnitID: ward.ID, SentimentScore: floatPtr(-3)}, apperrors.CodeValidation},
		"bad type":         {TicketCreateInput{Title: "x", UnitID: ward.ID, Type: "praise"}, apperrors.CodeValidation},
		"unknown unit":     {TicketCreateInput{Title: "x", UnitID: "ghost"}, apperrors.CodeNotFound},
		"unknown category": {TicketCreateInput{Title: "x", UnitID: ward.ID, CategoryID: strPtr("ghost")}, apperrors.CodeNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(ctx, nil, tc.input)
			assert.True(t, apperrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestRequestStatusTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	lab := f.unit(t, "lab", nil)
	staff := f.user(t, domain.RoleStaff, ward)
	supervisor := f.user(t, domain.RoleSupervisor, ward)
	outsider := f.user(t, domain.RoleSupervisor, lab)
	ticket := f.ticket(t, ward, nil)

	_, err := f.tickets.RequestStatusTransition(ctx, staff, "ghost", domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.tickets.RequestStatusTransition(ctx, outsider, ticket.ID, domain.TicketStatusInProgress, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	_, err = f.tickets.RequestStatusTransition(ctx, staff, ticket.ID, domain.TicketStatusClosed, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied), "staff may not close")

	_, err = f.tickets.RequestStatusTransition(ctx, staff, ticket.ID, domain.TicketStatusResolved, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	updated, err := f.tickets.RequestStatusTransition(ctx, staff, ticket.ID, domain.TicketStatusInProgress, "on it")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	_, err = f.tickets.RequestStatusTransition(ctx, supervisor, ticket.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)
	closed, err := f.tickets.RequestStatusTransition(ctx, supervisor, ticket.ID, domain.TicketStatusClosed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	history, err := f.tickets.ListHistory(ctx, supervisor, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, supervisor.ID, *history[2].ChangedByID)
	assert.Equal(t, baseTime.Add(DefaultSLA), f.reload(t, ticket.ID).SLADeadline, "deadline never moves")
}

func strPtr(s string) *string { return &s }
