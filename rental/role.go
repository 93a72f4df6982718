package rental

// =============================================================================
// ROLES
// =============================================================================

// Role is an employee's role.
type Role string

const (
	RoleSystemOwner    Role = "system_owner"
	RoleAdmin          Role = "admin"
	RoleOwnersAgent    Role = "owners_agent"
	RoleCustomersAgent Role = "customers_agent"
)

var roleLabels = map[Role]string{
	RoleSystemOwner:    "System owner",
	RoleAdmin:          "Administrator",
	RoleOwnersAgent:    "Owners agent",
	RoleCustomersAgent: "Customers agent",
}

var roleLevels = map[Role]int{
	RoleSystemOwner:    4,
	RoleAdmin:          3,
	RoleOwnersAgent:    2,
	RoleCustomersAgent: 1,
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Label returns a human-readable name, falling back to the raw value.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// Level orders roles for permission checks. Unknown roles are 0.
func (r Role) Level() int { return roleLevels[r] }

// IsAdminOrHigher reports whether r may manage targets and view the team.
func (r Role) IsAdminOrHigher() bool { return r.Level() >= roleLevels[RoleAdmin] }

// RoleDomain groups roles by the kind of work they are measured on.
type RoleDomain string

const (
	DomainCustomerFacing RoleDomain = "customer_facing"
	DomainPropertyFacing RoleDomain = "property_facing"
	DomainAdministrative RoleDomain = "administrative"
)

// Domain returns the performance domain of r.
func (r Role) Domain() RoleDomain {
	switch r {
	case RoleCustomersAgent:
		return DomainCustomerFacing
	case RoleOwnersAgent:
		return DomainPropertyFacing
	}
	return DomainAdministrative
}
