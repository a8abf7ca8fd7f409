package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMalformedIDsResolveNothing(t *testing.T) {
	ctx := context.Background()
	// a nil pool panics if a query is attempted
	lookups := map[string]func(id string) error{
		"ticket": func(id string) error {
			_, err := NewTicketRepository(nil).GetByID(ctx, id)
			return err
		},
		"unit": func(id string) error {
			_, err := NewUnitRepository(nil).GetByID(ctx, id)
			return err
		},
		"category": func(id string) error {
			_, err := NewCategoryRepository(nil).GetByID(ctx, id)
			return err
		},
		"user": func(id string) error {
			_, err := NewUserRepository(nil).GetByID(ctx, id)
			return err
		},
		"rule": func(id string) error {
			_, err := NewEscalationRuleRepository(nil).GetByID(ctx, id)
			return err
		},
		"escalation": func(id string) error {
			_, err := NewEscalationRepository(nil).GetByID(ctx, id)
			return err
		},
	}
	for name, lookup := range lookups {
		for _, id := range []string{"abc", "", "42", "not-a-uuid-at-all"} {
			assert.ErrorIs(t, lookup(id), ErrNotFound, "%s %q", name, id)
		}
	}
}

func TestLookupErrMapsUnparsableKeys(t *testing.T) {
	assert.ErrorIs(t, lookupErr(&pgconn.PgError{Code: invalidTextRepresentation}), ErrNotFound)

	other := &pgconn.PgError{Code: uniqueViolation}
	assert.Same(t, other, lookupErr(other))
}
