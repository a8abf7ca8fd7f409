package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("POLICY_GLOBAL_ROLES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 24*time.Hour, cfg.Policy.DefaultSLA())
	assert.Equal(t, []string{"ADMIN", "DIRECTOR"}, cfg.Policy.GlobalRoles)
	assert.Equal(t, "@every 5m", cfg.Escalation.Schedule)
	assert.Equal(t, "postgres", cfg.TicketNumber.Backend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLICY_GLOBAL_ROLES", " MANAGER , ADMIN,")
	t.Setenv("POLICY_DEFAULT_SLA_HOURS", "48")
	t.Setenv("POLICY_TIMEZONE", "Asia/Jakarta")
	t.Setenv("TICKET_NUMBER_BACKEND", "redis")
	t.Setenv("ESCALATION_LOCK_TTL_SECONDS", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"MANAGER", "ADMIN"}, cfg.Policy.GlobalRoles)
	assert.Equal(t, 48*time.Hour, cfg.Policy.DefaultSLA())
	assert.Equal(t, time.Minute, cfg.Escalation.LockTTL())
	loc, err := cfg.Policy.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"timezone":   {"POLICY_TIMEZONE", "Mars/Olympus"},
		"backend":    {"TICKET_NUMBER_BACKEND", "etcd"},
		"redis db":   {"REDIS_DB", "one"},
		"sweep rate": {"ESCALATION_RATE_PER_SECOND", "fast"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
