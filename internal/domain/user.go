package domain

import "time"

// Role identifies what a user is allowed to do across the service.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to support-side personnel.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgent
}

// User is the domain model for every participant: customers, agents and admins.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the directory projection used when labeling analytics rows.
type UserRef struct {
	ID    string
	Name  string
	Email string
}
