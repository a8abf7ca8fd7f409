package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Policy: config.PolicyConfig{
			GlobalRoles:     []string{"ADMIN"},
			DefaultSLAHours: 24,
			Timezone:        "UTC",
		},
		Escalation:   config.EscalationConfig{RatePerSecond: 0.5, CandidateLimit: 10},
		TicketNumber: config.TicketNumberConfig{Backend: "postgres", MaxRetries: 3},
	}
}

func TestNewInMemory(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Postgres)
	assert.False(t, c.Redis.Enabled())

	ctx := context.Background()
	require.NoError(t, c.Repos.Units.Create(ctx, &domain.Unit{ID: "ward", Name: "Ward", Code: "W", IsActive: true}))
	ticket, err := c.Tickets.CreateTicket(ctx, nil, service.TicketCreateInput{Title: "Cold food", UnitID: "ward"})
	require.NoError(t, err)
	assert.Regexp(t, `^TKT-\d{8}-00001$`, ticket.TicketNumber)

	report, err := c.Escalation.RunEscalationSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Rules)
}

func TestNewRejectsUnusableSequenceBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.TicketNumber.Backend = "redis"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "REDIS_ADDR")
}

func TestNewRejectsMissingCapabilitiesFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Policy.CapabilitiesFile = "/does/not/exist.yaml"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
