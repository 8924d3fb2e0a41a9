package permission

import (
	"sort"
	"time"
)

// ResolvedSet is the outcome of a resolution: the effective permission
// codenames a user holds in the requested scope, bucketed by each
// permission's own scope. A codename may appear in both buckets when the
// user holds it globally and locally at once; denying one binding does not
// disturb the other.
type ResolvedSet struct {
	global map[Codename]struct{}
	local  map[Codename]struct{}
}

func newResolvedSet() ResolvedSet {
	return ResolvedSet{
		global: make(map[Codename]struct{}),
		local:  make(map[Codename]struct{}),
	}
}

// Has reports whether the codename is present in either bucket.
func (r ResolvedSet) Has(c Codename) bool {
	if _, ok := r.global[c]; ok {
		return true
	}
	_, ok := r.local[c]
	return ok
}

// HasGlobal reports whether the codename resolved through a global
// permission.
func (r ResolvedSet) HasGlobal(c Codename) bool {
	_, ok := r.global[c]
	return ok
}

// HasLocal reports whether the codename resolved through a permission local
// to the requested website.
func (r ResolvedSet) HasLocal(c Codename) bool {
	_, ok := r.local[c]
	return ok
}

// HasAny reports whether at least one of the codenames resolves.
// An empty list resolves to false.
func (r ResolvedSet) HasAny(cs ...Codename) bool {
	for _, c := range cs {
		if r.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether every codename resolves. An empty list
// resolves to true.
func (r ResolvedSet) HasAll(cs ...Codename) bool {
	for _, c := range cs {
		if !r.Has(c) {
			return false
		}
	}
	return true
}

// Codenames returns the union of both buckets, sorted, for audit and
// introspection surfaces.
func (r ResolvedSet) Codenames() []Codename {
	seen := make(map[Codename]struct{}, len(r.global)+len(r.local))
	for c := range r.global {
		seen[c] = struct{}{}
	}
	for c := range r.local {
		seen[c] = struct{}{}
	}
	out := make([]Codename, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of distinct codenames in the set.
func (r ResolvedSet) Len() int {
	n := len(r.global)
	for c := range r.local {
		if _, ok := r.global[c]; !ok {
			n++
		}
	}
	return n
}

// Input carries everything a resolution needs. The resolver is pure: it
// never touches storage or clocks, so callers load the user's assignments
// and grants up front and pass the evaluation instant explicitly.
type Input struct {
	// Superuser short-circuits resolution to the full Universe.
	Superuser bool

	// Universe is every registered permission. Only consulted for
	// superusers.
	Universe []Permission

	// Assignments are the user's role assignments, any scope.
	Assignments []RoleAssignment

	// Grants are the user's direct grants and denials, any scope.
	Grants []DirectGrant
}

// Resolve computes the effective permission set for the given scope.
//
// Role-derived permissions are merged first: an assignment is considered
// when its scope applies in the requested scope, and each of its role's
// permissions then lands in the bucket matching the permission's own scope.
// A website-scoped permission inside a globally-assigned role binds only on
// its own website; carrying the role elsewhere does not carry the
// permission. Direct grants are applied second and therefore win over
// roles, under the same permission-scope bucketing: a positive grant adds
// the codename to its permission's bucket, a denial removes it from that
// bucket only, so denying a local binding leaves a global one intact and
// vice versa. Grants on a local permission of another website are inert.
// Expired grants are skipped entirely.
//
// Superusers receive the full Universe, bucketed the same way: every
// global permission, plus the local permissions of the requested website.
func Resolve(in Input, scope Scope, now time.Time) ResolvedSet {
	set := newResolvedSet()

	if in.Superuser {
		for _, p := range in.Universe {
			if bucket, ok := set.bucketForPermission(p, scope); ok {
				bucket[p.Codename] = struct{}{}
			}
		}
		return set
	}

	for _, a := range in.Assignments {
		if !a.Scope.AppliesIn(scope) {
			continue
		}
		for _, p := range a.Role.Permissions {
			if bucket, ok := set.bucketForPermission(p, scope); ok {
				bucket[p.Codename] = struct{}{}
			}
		}
	}

	for _, g := range in.Grants {
		if !g.ActiveAt(now) {
			continue
		}
		if !g.Scope.AppliesIn(scope) {
			continue
		}
		bucket, ok := set.bucketForPermission(g.Permission, scope)
		if !ok {
			continue
		}
		if g.Granted {
			bucket[g.Permission.Codename] = struct{}{}
		} else {
			delete(bucket, g.Permission.Codename)
		}
	}

	return set
}

// bucketForPermission picks the bucket a permission binds in for the
// requested scope. Local permissions of another website bind nowhere.
func (r ResolvedSet) bucketForPermission(p Permission, scope Scope) (map[Codename]struct{}, bool) {
	if p.Scope.IsGlobal() {
		return r.global, true
	}
	if p.Scope.AppliesIn(scope) {
		return r.local, true
	}
	return nil, false
}
