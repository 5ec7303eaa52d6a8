package models

// Role represents the closed set of roles recognised by the RBAC system.
// Roles form a total order; every authorization decision routes through
// Rank so "admin or higher" style checks cannot drift between handlers.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

var roleRanks = map[Role]int{
	RoleStudent:    1,
	RoleInstructor: 2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Rank returns the position of the role in the hierarchy, 0 for unknown
// roles so that an unrecognised claim never outranks anything.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether the role meets the minimum required role.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Rank() >= min.Rank()
}

// SelfAssignable reports whether the role may be chosen at registration.
// Privileged roles are only ever granted by an admin after the fact.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleInstructor
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	return r, r.Valid()
}
