package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))

	notFound := ToDomainError(fmt.Errorf("load ticket: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	internal := ToDomainError(errors.New("connection reset"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	wrapped := fmt.Errorf("outer: %w", NewConflict("taken", nil))
	assert.Equal(t, CodeConflict, ToDomainError(wrapped).Code)
}

func TestAccessDeniedHidesReason(t *testing.T) {
	err := NewAccessDenied("unit mismatch")

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "access denied", domainErr.Message)
	assert.Equal(t, http.StatusForbidden, domainErr.HTTPStatus)
	assert.Nil(t, domainErr.Details)
	assert.EqualError(t, errors.Unwrap(err), "unit mismatch")
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("transition: %w", NewInvalidTransition("CLOSED", "OPEN"))

	assert.True(t, HasCode(err, CodeInvalidTransition))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))

	domainErr := ToDomainError(err)
	assert.Equal(t, map[string]any{"from": "CLOSED", "to": "OPEN"}, domainErr.Details)
}
