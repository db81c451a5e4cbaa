package domain

import "time"

// Membership links a user to an organization with a role.
type Membership struct {
	ID        string
	UserID    string
	OrgID     string
	Role      Role
	CreatedAt time.Time
}

// Role is an org-scoped role in the field-operations hierarchy.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleRegionalManager Role = "regional_manager"
	RoleBranchManager   Role = "branch_manager"
	RoleSupervisor      Role = "supervisor"
	RoleFieldAgent      Role = "field_agent"
)

// roleRank orders roles; higher outranks lower.
var roleRank = map[Role]int{
	RoleFieldAgent:      1,
	RoleSupervisor:      2,
	RoleBranchManager:   3,
	RoleRegionalManager: 4,
	RoleAdmin:           5,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r outranks or equals other. Unknown roles rank lowest.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}
