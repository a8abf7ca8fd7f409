package policy

import "github.com/spec-kit/ticket-escalation/internal/domain"

// AccessPolicy combines the capability matrix with the deployment's list
// of global-access roles.
type AccessPolicy struct {
	Matrix      *Matrix
	globalRoles map[domain.Role]struct{}
}

// NewAccessPolicy builds a policy. A nil matrix falls back to Default().
func NewAccessPolicy(matrix *Matrix, globalRoles []domain.Role) *AccessPolicy {
	if matrix == nil {
		matrix = Default()
	}
	set := make(map[domain.Role]struct{}, len(globalRoles))
	for _, role := range globalRoles {
		set[role] = struct{}{}
	}
	return &AccessPolicy{Matrix: matrix, globalRoles: set}
}

// HasGlobalView reports whether role sees every ticket regardless of unit.
func (p *AccessPolicy) HasGlobalView(role domain.Role) bool {
	if _, ok := p.globalRoles[role]; ok {
		return true
	}
	return p.Matrix.Capabilities(role).CanViewAllTickets
}
