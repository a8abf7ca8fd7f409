package domain

import "time"

// Unit represents an organizational unit; units form a forest via ParentID.
type Unit struct {
	ID        string
	Name      string
	Code      string
	ParentID  *string
	SLAHours  *int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups tickets by service subject.
type Category struct {
	ID              string
	Name            string
	DefaultSLAHours *int
	IsActive        bool
	CreatedAt       time.Time
}
