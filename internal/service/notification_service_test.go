package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/events"
)

func notificationFixture(t *testing.T) (*fixture, *observer.ObservedLogs) {
	t.Helper()
	f := newFixture(t)
	core, logs := observer.New(zap.InfoLevel)
	notifications := NewNotificationService(f.dispatcher, f.store.Users(), zap.New(core), config.NotificationConfig{})
	notifications.RegisterHandlers()
	return f, logs
}

func TestEscalationNoticeAddressesNamedUser(t *testing.T) {
	f, logs := notificationFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	first := f.user(t, domain.RoleSupervisor, ward)
	f.user(t, domain.RoleSupervisor, ward)
	f.user(t, domain.RoleStaff, ward)
	f.rule(t, nil)
	ticket := f.ticket(t, ward, nil)

	_, err := f.escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)

	notices := logs.FilterMessage("notification prepared").
		FilterField(zap.String("event_type", string(events.EventTicketEscalated))).All()
	require.Len(t, notices, 1)
	fields := notices[0].ContextMap()
	assert.Equal(t, ticket.ID, fields["ticket_id"])
	assert.Equal(t, "automatic", fields["escalation_type"])
	assert.Equal(t, ward.ID, fields["to_unit_id"])
	assert.Equal(t, string(domain.RoleSupervisor), fields["to_role"])
	// the sweep names one user, so only that user is addressed
	assert.Equal(t, []any{first.ID}, fields["user_ids"])
}

func TestEscalationNoticeFallsBackToRole(t *testing.T) {
	f, logs := notificationFixture(t)
	ctx := context.Background()
	lab := f.unit(t, "lab", nil)
	head := f.user(t, domain.RoleManager, lab)
	f.user(t, domain.RoleStaff, lab)
	role := domain.RoleManager

	require.NoError(t, f.dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: "t-1",
		Payload: events.TicketEscalatedPayload{
			EscalationID:   "e-1",
			EscalationType: domain.EscalationManual,
			ToUnitID:       lab.ID,
			ToRole:         &role,
			Reason:         "needs a manager",
			TargetUnitIDs:  []string{lab.ID},
			CCUnitIDs:      []string{"pharmacy"},
		},
	}))

	notices := logs.FilterMessage("notification prepared").All()
	require.Len(t, notices, 1)
	fields := notices[0].ContextMap()
	assert.Equal(t, []any{head.ID}, fields["user_ids"])
	assert.Equal(t, []any{"pharmacy"}, fields["unit_ids"])
}

func TestSystemHopsAreNotAnnounced(t *testing.T) {
	f, logs := notificationFixture(t)
	ctx := context.Background()
	ward := f.unit(t, "ward", nil)
	ticket := f.ticket(t, ward, nil)

	require.NoError(t, f.lifecycle.Escalate(ctx, ticket, systemChange("")))

	statusNotices := logs.FilterMessage("notification prepared").
		FilterField(zap.String("event_type", string(events.EventTicketStatusChanged))).All()
	require.Len(t, statusNotices, 1)
	assert.Equal(t, "Ticket moved from IN_PROGRESS to ESCALATED", statusNotices[0].ContextMap()["subject"])
}

func TestNoticeRejectsForeignPayload(t *testing.T) {
	f, _ := notificationFixture(t)
	err := f.dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: "not a payload",
	})
	assert.Error(t, err)
}
