package permission

import (
	"errors"

	"github.com/google/uuid"
)

// ErrScopeWebsiteRequired is returned by Website when the id is nil.
var ErrScopeWebsiteRequired = errors.New("local scope requires a website id")

// Scope describes where a permission, role assignment, or direct grant
// applies: everywhere (global) or on exactly one website. The zero value is
// the global scope, so a local scope without a website is unrepresentable.
type Scope struct {
	websiteID uuid.UUID
	local     bool
}

// Global returns the scope that applies on every website.
func Global() Scope {
	return Scope{}
}

// Website returns a scope bound to a single website. The nil UUID is
// rejected so that a "local but nowhere" scope cannot be constructed.
func Website(id uuid.UUID) (Scope, error) {
	if id == uuid.Nil {
		return Scope{}, ErrScopeWebsiteRequired
	}
	return Scope{websiteID: id, local: true}, nil
}

// MustWebsite is Website for callers holding a known-valid id; it panics on
// the nil UUID and is intended for tests and static wiring.
func MustWebsite(id uuid.UUID) Scope {
	s, err := Website(id)
	if err != nil {
		panic(err)
	}
	return s
}

// IsGlobal reports whether the scope applies everywhere.
func (s Scope) IsGlobal() bool {
	return !s.local
}

// WebsiteID returns the bound website id and true for a local scope.
func (s Scope) WebsiteID() (uuid.UUID, bool) {
	if !s.local {
		return uuid.Nil, false
	}
	return s.websiteID, true
}

// AppliesIn reports whether an entity carrying scope s contributes to a
// resolution requested for ctx. Global entities apply in every context; a
// local entity applies only when the requested context is local to the same
// website. A request in the global context therefore never sees local
// entities.
func (s Scope) AppliesIn(ctx Scope) bool {
	if !s.local {
		return true
	}
	return ctx.local && s.websiteID == ctx.websiteID
}

// Equal reports scope identity, including the bound website for local scopes.
func (s Scope) Equal(other Scope) bool {
	return s.local == other.local && s.websiteID == other.websiteID
}

func (s Scope) String() string {
	if !s.local {
		return "global"
	}
	return "website:" + s.websiteID.String()
}
