package rbac

import (
	"fmt"
	"strings"
)

// Role is the closed set of privilege levels.
type Role string

// Known roles, in ascending privilege.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole converts a stored role string into a Role. Unknown values are an error so that
// nothing downstream ever treats them as privileged.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	}
	return "", fmt.Errorf("rbac: unknown role %q", raw)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether r is admin or super_admin.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Action names an operation on a resource.
type Action string

// Actions recognised by the permission table.
const (
	ActionView         Action = "view"
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionRestrict     Action = "restrict"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionReply        Action = "reply"
	ActionMarkResolved Action = "mark_resolved"
)

// Resource names a resource type.
type Resource string

// Resource types recognised by the permission table.
const (
	ResourceLand        Resource = "land"
	ResourceUser        Resource = "user"
	ResourceApplication Resource = "application"
	ResourceMessage     Resource = "message"
	ResourceProfile     Resource = "profile"
	ResourceReport      Resource = "report"
	ResourceSettings    Resource = "settings"
	ResourceExport      Resource = "export"
)

// Principal describes the authenticated actor for one request. It is never persisted and is
// rebuilt from the identity store on every request.
type Principal struct {
	ID           int64
	Role         Role
	IsRestricted bool
}

// GetID returns the principal identifier.
func (p Principal) GetID() int64 {
	return p.ID
}

// IsSuperUser reports whether the principal is a super admin.
func (p Principal) IsSuperUser() bool {
	return p.Role == RoleSuperAdmin
}
