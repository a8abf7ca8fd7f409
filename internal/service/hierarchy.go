package service

import (
	"context"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/repository"
)

// unitForest is an index arena over a unit snapshot. parent[i] is the
// index of unit i's parent, or -1 when the unit is a root or its parent
// is missing from the snapshot.
type unitForest struct {
	index  map[string]int
	units  []domain.Unit
	parent []int
}

func newUnitForest(units []domain.Unit) *unitForest {
	f := &unitForest{
		index:  make(map[string]int, len(units)),
		units:  units,
		parent: make([]int, len(units)),
	}
	for i, unit := range units {
		f.index[unit.ID] = i
	}
	for i, unit := range units {
		f.parent[i] = -1
		if unit.ParentID == nil {
			continue
		}
		if p, ok := f.index[*unit.ParentID]; ok {
			f.parent[i] = p
		}
	}
	return f
}

// isDescendantOf walks parent pointers from candidate. A repeated index
// means a cycle that does not contain ancestor.
func (f *unitForest) isDescendantOf(candidateID, ancestorID string) bool {
	start, ok := f.index[candidateID]
	if !ok {
		return false
	}
	target, ok := f.index[ancestorID]
	if !ok {
		return false
	}
	visited := make([]bool, len(f.units))
	visited[start] = true
	for cur := f.parent[start]; cur >= 0; cur = f.parent[cur] {
		if cur == target {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
	}
	return false
}

// chain returns unitID followed by its ancestors, nearest first.
func (f *unitForest) chain(unitID string) []domain.Unit {
	start, ok := f.index[unitID]
	if !ok {
		return nil
	}
	visited := make([]bool, len(f.units))
	var out []domain.Unit
	for cur := start; cur >= 0 && !visited[cur]; cur = f.parent[cur] {
		visited[cur] = true
		out = append(out, f.units[cur])
	}
	return out
}

// UnitHierarchy answers ancestry questions over the unit forest.
type UnitHierarchy struct {
	units repository.UnitRepository
}

// NewUnitHierarchy constructs the resolver.
func NewUnitHierarchy(units repository.UnitRepository) *UnitHierarchy {
	return &UnitHierarchy{units: units}
}

func (h *UnitHierarchy) load(ctx context.Context) (*unitForest, error) {
	units, err := h.units.List(ctx)
	if err != nil {
		return nil, err
	}
	return newUnitForest(units), nil
}

// IsDescendantOf reports whether candidate sits strictly below ancestor.
// Missing units and cyclic parent chains yield false.
func (h *UnitHierarchy) IsDescendantOf(ctx context.Context, candidateID, ancestorID string) (bool, error) {
	if candidateID == "" || ancestorID == "" {
		return false, nil
	}
	forest, err := h.load(ctx)
	if err != nil {
		return false, err
	}
	return forest.isDescendantOf(candidateID, ancestorID), nil
}

// Ancestors returns the unit itself followed by its ancestors.
func (h *UnitHierarchy) Ancestors(ctx context.Context, unitID string) ([]domain.Unit, error) {
	forest, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	return forest.chain(unitID), nil
}

// WithinSubtree reports whether target is home or one of its descendants.
func (h *UnitHierarchy) WithinSubtree(ctx context.Context, homeUnitID, targetUnitID string) (bool, error) {
	if homeUnitID == "" || targetUnitID == "" {
		return false, nil
	}
	if homeUnitID == targetUnitID {
		return true, nil
	}
	return h.IsDescendantOf(ctx, targetUnitID, homeUnitID)
}
