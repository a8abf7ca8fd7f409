// Package policy holds the role capability matrix. The matrix is data: it
// is decoded from a versioned YAML document once at startup and treated as
// read-only afterwards.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

//go:embed capabilities.yaml
var defaultDocument []byte

// Capabilities is the fixed capability record of a role.
type Capabilities struct {
	CanCreate             bool                  `yaml:"can_create"`
	CanAssign             bool                  `yaml:"can_assign"`
	CanEscalate           bool                  `yaml:"can_escalate"`
	CanClose              bool                  `yaml:"can_close"`
	CanViewAllTickets     bool                  `yaml:"can_view_all_tickets"`
	CanViewUnitTickets    bool                  `yaml:"can_view_unit_tickets"`
	CanManageUsers        bool                  `yaml:"can_manage_users"`
	CanManageUnits        bool                  `yaml:"can_manage_units"`
	CanViewReports        bool                  `yaml:"can_view_reports"`
	CanExportData         bool                  `yaml:"can_export_data"`
	MaxAssignablePriority domain.TicketPriority `yaml:"max_assignable_priority"`
	CanOverrideSLA        bool                  `yaml:"can_override_sla"`
	CanAccessAISettings   bool                  `yaml:"can_access_ai_settings"`
}

// RoleDefinition places a role in the hierarchy.
type RoleDefinition struct {
	Level        int          `yaml:"level"`
	Escalation   bool         `yaml:"escalation"`
	Capabilities Capabilities `yaml:"capabilities"`
}

type document struct {
	Version string                         `yaml:"version"`
	Roles   map[domain.Role]RoleDefinition `yaml:"roles"`
}

// Matrix maps roles to capability records and hierarchy levels.
type Matrix struct {
	version string
	roles   map[domain.Role]RoleDefinition
	// escalation chain ordered by level
	chain []domain.Role
}

// Default returns the matrix compiled into the binary.
func Default() *Matrix {
	m, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded capability matrix invalid: %v", err))
	}
	return m
}

// Load reads a matrix from path, or returns the embedded default when path is empty.
func Load(path string) (*Matrix, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability matrix: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a matrix document.
func Parse(data []byte) (*Matrix, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode capability matrix: %w", err)
	}
	if doc.Version == "" {
		return nil, errors.New("capability matrix: version is required")
	}
	if len(doc.Roles) == 0 {
		return nil, errors.New("capability matrix: no roles defined")
	}

	levels := make(map[int]domain.Role, len(doc.Roles))
	chain := make([]domain.Role, 0, len(doc.Roles))
	for role, def := range doc.Roles {
		if def.Level <= 0 {
			return nil, fmt.Errorf("capability matrix: role %s has no level", role)
		}
		if other, dup := levels[def.Level]; dup {
			return nil, fmt.Errorf("capability matrix: roles %s and %s share level %d", role, other, def.Level)
		}
		levels[def.Level] = role
		if p := def.Capabilities.MaxAssignablePriority; p != "" && !p.Valid() {
			return nil, fmt.Errorf("capability matrix: role %s has unknown priority %q", role, p)
		}
		if def.Escalation {
			chain = append(chain, role)
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		return doc.Roles[chain[i]].Level < doc.Roles[chain[j]].Level
	})

	return &Matrix{version: doc.Version, roles: doc.Roles, chain: chain}, nil
}

// Version identifies the loaded document.
func (m *Matrix) Version() string {
	return m.version
}

// Known reports whether the role is defined.
func (m *Matrix) Known(role domain.Role) bool {
	_, ok := m.roles[role]
	return ok
}

// Level returns the hierarchy level of role, 0 when undefined.
func (m *Matrix) Level(role domain.Role) int {
	return m.roles[role].Level
}

// Capabilities returns the capability record of role. Unknown roles get
// the zero record, which grants nothing.
func (m *Matrix) Capabilities(role domain.Role) Capabilities {
	return m.roles[role].Capabilities
}

// NextEscalationRole returns the escalation role exactly one hierarchy
// level above role.
func (m *Matrix) NextEscalationRole(role domain.Role) (domain.Role, bool) {
	def, ok := m.roles[role]
	if !ok {
		return "", false
	}
	for _, candidate := range m.chain {
		if m.roles[candidate].Level == def.Level+1 {
			return candidate, true
		}
	}
	return "", false
}

// CanAssignPriority reports whether role may set a ticket to priority p.
func (m *Matrix) CanAssignPriority(role domain.Role, p domain.TicketPriority) bool {
	max := m.Capabilities(role).MaxAssignablePriority
	if max == "" {
		return false
	}
	return p.Rank() <= max.Rank()
}
