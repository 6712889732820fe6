package rbac

// Role is the flat access level assigned to a user. There is no hierarchy:
// every capability check is an explicit membership test.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEngineer Role = "engineer"
	RoleObserver Role = "observer"
)

// All lists every known role in seed order.
var All = []Role{RoleAdmin, RoleManager, RoleEngineer, RoleObserver}

// Permits reports whether role is one of the allowed roles. An unknown or
// empty role permits nothing.
func Permits(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// Valid reports whether role is a known role value.
func Valid(role Role) bool {
	return Permits(role, All...)
}
