package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "ticket-escalation", 30)
	user := &domain.User{ID: "u-1", Role: domain.RoleSupervisor}

	token, expiresAt, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, domain.RoleSupervisor, claims.Role)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "ticket-escalation", 30)
	user := &domain.User{ID: "u-1", Role: domain.RoleStaff}

	other := NewTokenManager("other-secret", "ticket-escalation", 30)
	forged, _, err := other.GenerateToken(user)
	require.NoError(t, err)
	_, err = tm.ParseToken(forged)
	assert.Error(t, err, "wrong key")

	foreign := NewTokenManager("secret", "someone-else", 30)
	token, _, err := foreign.GenerateToken(user)
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.Error(t, err, "wrong issuer")

	stale := NewTokenManager("secret", "ticket-escalation", 1)
	stale.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err = stale.GenerateToken(user)
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.Error(t, err, "expired")

	_, err = tm.ParseToken("not-a-token")
	assert.Error(t, err)
}
