package domain

import "time"

// Role enumerates internal operator roles.
type Role string

const (
	RoleStaff      Role = "STAFF"
	RoleSupervisor Role = "SUPERVISOR"
	RoleManager    Role = "MANAGER"
	RoleDirector   Role = "DIRECTOR"
	RoleAdmin      Role = "ADMIN"
)

// User is an internal actor; role and unit drive every authorization decision.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	UnitID    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
