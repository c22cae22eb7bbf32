package users

import (
	"time"

	"github.com/odyssey-erp/landhub/internal/rbac"
)

// User represents an account as held by the identity store.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         rbac.Role
	IsRestricted bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the security-relevant fields of u.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Role: u.Role, IsRestricted: u.IsRestricted}
}

// RoleFilter narrows FetchUsersByRole.
type RoleFilter struct {
	Roles  []rbac.Role
	Limit  int
	Offset int
}

// collapseRole folds the legacy is_admin flag and the role column into one Role. The role
// column wins whenever it holds a known value; otherwise the flag decides between admin and
// user. Unknown strings never grant more than user.
func collapseRole(raw string, legacyAdmin bool) rbac.Role {
	if role, err := rbac.ParseRole(raw); err == nil {
		return role
	}
	if legacyAdmin {
		return rbac.RoleAdmin
	}
	return rbac.RoleUser
}
