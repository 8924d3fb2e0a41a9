package permission

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a single named right tagged with the scope it applies in.
// The scope carries the website binding for local permissions, so a global
// permission can never reference a website and a local one always does.
type Permission struct {
	ID       uuid.UUID
	Codename Codename
	Scope    Scope
}

// Role is a named bundle of permissions. A role is scope-neutral; scope is
// attached when the role is assigned to a user, which lets the same role be
// reused both globally and per website.
type Role struct {
	ID          uuid.UUID
	Name        string
	Permissions []Permission
}

// RoleAssignment binds a role to a user within a scope. The user receives
// every permission in the role, filtered to the scope the resolution is
// requested for.
type RoleAssignment struct {
	Role       Role
	Scope      Scope
	AssignedAt time.Time
	AssignedBy uuid.UUID
}

// DirectGrant assigns (or explicitly denies) a single permission to a user,
// bypassing roles. Grants carry upsert semantics on the
// (user, permission, scope) key and may expire; an expired grant is treated
// as inactive, not deleted.
type DirectGrant struct {
	Permission Permission
	Scope      Scope
	Granted    bool
	AssignedAt time.Time
	AssignedBy uuid.UUID
	ExpiresAt  time.Time
}

// ActiveAt reports whether the grant is in effect at the given instant.
// A zero ExpiresAt never expires.
func (g DirectGrant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt.IsZero() || now.Before(g.ExpiresAt)
}
