package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

func TestIsDescendantOf(t *testing.T) {
	f := newFixture(t)
	root := f.unit(t, "hospital", nil)
	ward := f.unit(t, "ward", root)
	bed := f.unit(t, "bed-wing", ward)
	f.unit(t, "lab", root)
	ctx := context.Background()

	cases := []struct {
		name                string
		candidate, ancestor string
		expected            bool
	}{
		{"direct child", ward.ID, root.ID, true},
		{"grandchild", bed.ID, root.ID, true},
		{"ancestor is not a descendant", root.ID, bed.ID, false},
		{"self", ward.ID, ward.ID, false},
		{"sibling", "lab", ward.ID, false},
		{"missing candidate", "ghost", root.ID, false},
		{"missing ancestor", bed.ID, "ghost", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.hierarchy.IsDescendantOf(ctx, tc.candidate, tc.ancestor)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestIsDescendantOfTerminatesOnCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parentOf := map[string]string{"a": "b", "b": "c", "c": "a"}
	for id, parent := range parentOf {
		p := parent
		require.NoError(t, f.store.Units().Create(ctx, &domain.Unit{ID: id, Name: id, ParentID: &p, IsActive: true}))
	}
	f.unit(t, "outside", nil)

	got, err := f.hierarchy.IsDescendantOf(ctx, "a", "outside")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = f.hierarchy.IsDescendantOf(ctx, "a", "c")
	require.NoError(t, err)
	assert.True(t, got, "ancestor inside the cycle is still reachable")

	chain, err := f.hierarchy.Ancestors(ctx, "a")
	require.NoError(t, err)
	ids := make([]string, 0, len(chain))
	for _, u := range chain {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestWithinSubtree(t *testing.T) {
	f := newFixture(t)
	root := f.unit(t, "hospital", nil)
	ward := f.unit(t, "ward", root)
	ctx := context.Background()

	ok, err := f.hierarchy.WithinSubtree(ctx, root.ID, ward.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.hierarchy.WithinSubtree(ctx, ward.ID, ward.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.hierarchy.WithinSubtree(ctx, ward.ID, root.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
