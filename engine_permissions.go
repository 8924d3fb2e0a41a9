package crossAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/crossAuth/permission"
)

// ResolvePermissions computes the user's effective permission set for the
// requested scope. Provider errors surface so callers that need to
// distinguish "no permissions" from "backend down" can; the boolean
// predicates below swallow them and fail closed instead.
func (e *Engine) ResolvePermissions(
	ctx context.Context,
	userID string,
	scope permission.Scope,
) (permission.ResolvedSet, error) {
	if e == nil || e.permissionProvider == nil || e.userProvider == nil {
		return permission.ResolvedSet{}, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		defer e.observeLatency(MetricResolveLatency, time.Now())
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return permission.ResolvedSet{}, ErrUserNotFound
	}
	if !user.Active {
		return permission.Resolve(permission.Input{}, scope, time.Now()), nil
	}

	in := permission.Input{Superuser: user.Superuser}

	if user.Superuser {
		universe, err := e.permissionProvider.AllPermissions(ctx)
		if err != nil {
			return permission.ResolvedSet{}, ErrPermissionUnavailable
		}
		if e.registry != nil {
			kept := make([]permission.Permission, 0, len(universe))
			for _, p := range universe {
				if e.registry.Known(p.Codename) {
					kept = append(kept, p)
				}
			}
			universe = kept
		}
		in.Universe = universe
	} else {
		assignments, err := e.permissionProvider.UserAssignments(ctx, userID)
		if err != nil {
			return permission.ResolvedSet{}, ErrPermissionUnavailable
		}
		grants, err := e.permissionProvider.UserGrants(ctx, userID)
		if err != nil {
			return permission.ResolvedSet{}, ErrPermissionUnavailable
		}
		in.Assignments = assignments
		in.Grants = grants
	}

	return permission.Resolve(in, scope, time.Now()), nil
}

// HasPermission reports whether the user holds the codename in the scope.
// Unknown user, malformed codename, unregistered codename, and provider
// failure all answer false.
func (e *Engine) HasPermission(
	ctx context.Context,
	userID string,
	codename string,
	scope permission.Scope,
) bool {
	c, err := permission.ParseCodename(codename)
	if err != nil {
		return false
	}
	if !e.codenameRegistered(c) {
		e.metricInc(MetricPermissionDenied)
		return false
	}

	set, err := e.ResolvePermissions(ctx, userID, scope)
	if err != nil {
		e.metricInc(MetricPermissionDenied)
		return false
	}

	if set.Has(c) {
		e.metricInc(MetricPermissionGranted)
		return true
	}
	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, userID, auditScopeWebsite(scope), "", ErrPermissionDenied, func() map[string]string {
		return map[string]string{
			"codename": codename,
		}
	})
	return false
}

// HasAnyPermission reports whether the user holds at least one of the
// codenames. An empty list answers false.
func (e *Engine) HasAnyPermission(
	ctx context.Context,
	userID string,
	codenames []string,
	scope permission.Scope,
) bool {
	parsed, ok := e.parseCodenames(codenames)
	if !ok || len(parsed) == 0 {
		return false
	}

	set, err := e.ResolvePermissions(ctx, userID, scope)
	if err != nil {
		return false
	}
	return set.HasAny(parsed...)
}

// HasAllPermissions reports whether the user holds every codename. An empty
// list answers true, matching [permission.ResolvedSet.HasAll].
func (e *Engine) HasAllPermissions(
	ctx context.Context,
	userID string,
	codenames []string,
	scope permission.Scope,
) bool {
	parsed, ok := e.parseCodenames(codenames)
	if !ok {
		return false
	}

	set, err := e.ResolvePermissions(ctx, userID, scope)
	if err != nil {
		return false
	}
	return set.HasAll(parsed...)
}

// UserRoles lists the user's role assignments that apply in the scope.
func (e *Engine) UserRoles(
	ctx context.Context,
	userID string,
	scope permission.Scope,
) ([]permission.RoleAssignment, error) {
	if e == nil || e.permissionProvider == nil {
		return nil, ErrEngineNotReady
	}

	assignments, err := e.permissionProvider.UserAssignments(ctx, userID)
	if err != nil {
		return nil, ErrPermissionUnavailable
	}

	var out []permission.RoleAssignment
	for _, a := range assignments {
		if a.Scope.AppliesIn(scope) {
			out = append(out, a)
		}
	}
	return out, nil
}

// parseCodenames validates a codename list for the boolean surfaces. A
// malformed or unregistered entry fails the whole list closed.
func (e *Engine) parseCodenames(names []string) ([]permission.Codename, bool) {
	out := make([]permission.Codename, 0, len(names))
	for _, n := range names {
		c, err := permission.ParseCodename(n)
		if err != nil {
			return nil, false
		}
		if !e.codenameRegistered(c) {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

// codenameRegistered reports whether the codename is in the deployment's
// declared set. Engines built without a registry accept any well-formed
// codename.
func (e *Engine) codenameRegistered(c permission.Codename) bool {
	return e == nil || e.registry == nil || e.registry.Known(c)
}

func auditScopeWebsite(scope permission.Scope) string {
	if id, ok := scope.WebsiteID(); ok {
		return id.String()
	}
	return ""
}
