package pgprovider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/crossAuth/permission"
)

// UserAssignments loads the user's role assignments with each role's full
// permission set, grouped per assignment row.
func (s *Store) UserAssignments(ctx context.Context, userID string) ([]permission.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select ur.id, ur.role_id, r.name, ur.scope, ur.website_id, ur.assigned_at, ur.assigned_by,
		       p.id, p.codename, p.scope, p.website_id
		from user_roles ur
		join roles r on r.id = ur.role_id
		left join role_permissions rp on rp.role_id = ur.role_id
		left join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by ur.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result    []permission.RoleAssignment
		current   *permission.RoleAssignment
		currentID uuid.UUID
	)
	for rows.Next() {
		var (
			assignmentID  uuid.UUID
			roleID        uuid.UUID
			roleName      string
			asgScope      string
			asgWebsite    uuid.NullUUID
			assignedAt    time.Time
			assignedBy    uuid.NullUUID
			permID        uuid.NullUUID
			permCodename  sql.NullString
			permScope     sql.NullString
			permWebsiteID uuid.NullUUID
		)
		if err := rows.Scan(&assignmentID, &roleID, &roleName, &asgScope, &asgWebsite, &assignedAt, &assignedBy,
			&permID, &permCodename, &permScope, &permWebsiteID); err != nil {
			return nil, err
		}

		if current == nil || currentID != assignmentID {
			scope, err := scanScope(asgScope, asgWebsite)
			if err != nil {
				return nil, fmt.Errorf("role assignment %s: %w", roleID, err)
			}
			result = append(result, permission.RoleAssignment{
				Role:       permission.Role{ID: roleID, Name: roleName},
				Scope:      scope,
				AssignedAt: assignedAt,
				AssignedBy: assignedBy.UUID,
			})
			current = &result[len(result)-1]
			currentID = assignmentID
		}

		if !permID.Valid {
			continue
		}
		perm, err := scanPermission(permID.UUID, permCodename.String, permScope.String, permWebsiteID)
		if err != nil {
			return nil, err
		}
		current.Role.Permissions = append(current.Role.Permissions, perm)
	}
	return result, rows.Err()
}

// UserGrants loads the user's direct permission grants and denials.
func (s *Store) UserGrants(ctx context.Context, userID string) ([]permission.DirectGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.codename, p.scope, p.website_id,
		       up.scope, up.website_id, up.granted, up.assigned_at, up.assigned_by, up.expires_at
		from user_permissions up
		join permissions p on p.id = up.permission_id
		where up.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []permission.DirectGrant
	for rows.Next() {
		var (
			permID        uuid.UUID
			permCodename  string
			permScope     string
			permWebsiteID uuid.NullUUID
			grantScope    string
			grantWebsite  uuid.NullUUID
			granted       bool
			assignedAt    time.Time
			assignedBy    uuid.NullUUID
			expiresAt     sql.NullTime
		)
		if err := rows.Scan(&permID, &permCodename, &permScope, &permWebsiteID,
			&grantScope, &grantWebsite, &granted, &assignedAt, &assignedBy, &expiresAt); err != nil {
			return nil, err
		}

		perm, err := scanPermission(permID, permCodename, permScope, permWebsiteID)
		if err != nil {
			return nil, err
		}
		scope, err := scanScope(grantScope, grantWebsite)
		if err != nil {
			return nil, fmt.Errorf("grant on %s: %w", permCodename, err)
		}

		grant := permission.DirectGrant{
			Permission: perm,
			Scope:      scope,
			Granted:    granted,
			AssignedAt: assignedAt,
			AssignedBy: assignedBy.UUID,
		}
		if expiresAt.Valid {
			grant.ExpiresAt = expiresAt.Time
		}
		result = append(result, grant)
	}
	return result, rows.Err()
}

// AllPermissions returns the full permission universe with each row's
// scope, used for superuser resolution.
func (s *Store) AllPermissions(ctx context.Context) ([]permission.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, codename, scope, website_id from permissions order by codename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []permission.Permission
	for rows.Next() {
		var (
			id        uuid.UUID
			codename  string
			scope     string
			websiteID uuid.NullUUID
		)
		if err := rows.Scan(&id, &codename, &scope, &websiteID); err != nil {
			return nil, err
		}
		perm, err := scanPermission(id, codename, scope, websiteID)
		if err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	return result, rows.Err()
}

func scanPermission(id uuid.UUID, codename, scope string, websiteID uuid.NullUUID) (permission.Permission, error) {
	parsed, err := permission.ParseCodename(codename)
	if err != nil {
		return permission.Permission{}, fmt.Errorf("permission %s: %w", id, err)
	}
	s, err := scanScope(scope, websiteID)
	if err != nil {
		return permission.Permission{}, fmt.Errorf("permission %s: %w", id, err)
	}
	return permission.Permission{ID: id, Codename: parsed, Scope: s}, nil
}

func scanScope(scope string, websiteID uuid.NullUUID) (permission.Scope, error) {
	switch scope {
	case "global":
		return permission.Global(), nil
	case "website":
		if !websiteID.Valid {
			return permission.Scope{}, fmt.Errorf("website scope row without website_id")
		}
		return permission.Website(websiteID.UUID)
	default:
		return permission.Scope{}, fmt.Errorf("unknown scope %q", scope)
	}
}
