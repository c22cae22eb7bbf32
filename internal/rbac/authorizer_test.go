package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landhub/internal/shared"
)

func owner(id int64) *int64 { return &id }

var (
	allActions = []Action{
		ActionView, ActionCreate, ActionEdit, ActionDelete, ActionRestrict,
		ActionApprove, ActionReject, ActionReply, ActionMarkResolved,
	}
	allResources = []Resource{
		ResourceLand, ResourceUser, ResourceApplication, ResourceMessage,
		ResourceProfile, ResourceReport, ResourceSettings, ResourceExport,
	}
)

func TestAuthorizeMatrix(t *testing.T) {
	admin := Principal{ID: 10, Role: RoleAdmin}
	user := Principal{ID: 30, Role: RoleUser}

	cases := []struct {
		name   string
		p      Principal
		req    Request
		reason shared.DenyReason // empty means allowed
	}{
		{"admin creates land", admin, Request{Action: ActionCreate, Resource: ResourceLand}, ""},
		{"admin edits foreign land", admin, Request{Action: ActionEdit, Resource: ResourceLand, OwnerID: owner(11)}, ""},
		{"admin views land", admin, Request{Action: ActionView, Resource: ResourceLand}, ""},
		{"admin deletes own land", admin, Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(10)}, ""},
		{"admin deletes other admin land", admin, Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(11)}, shared.ReasonOwnershipViolation},
		{"admin deletes unowned land", admin, Request{Action: ActionDelete, Resource: ResourceLand}, shared.ReasonOwnershipViolation},
		{"admin views user", admin, Request{Action: ActionView, Resource: ResourceUser, TargetRole: RoleUser}, ""},
		{"admin edits user", admin, Request{Action: ActionEdit, Resource: ResourceUser, TargetRole: RoleUser}, ""},
		{"admin views admin", admin, Request{Action: ActionView, Resource: ResourceUser, TargetRole: RoleAdmin}, shared.ReasonInsufficientRole},
		{"admin edits super admin", admin, Request{Action: ActionEdit, Resource: ResourceUser, TargetRole: RoleSuperAdmin}, shared.ReasonInsufficientRole},
		{"admin restricts user", admin, Request{Action: ActionRestrict, Resource: ResourceUser, TargetRole: RoleUser}, shared.ReasonInsufficientRole},
		{"admin approves application", admin, Request{Action: ActionApprove, Resource: ResourceApplication}, ""},
		{"admin rejects application", admin, Request{Action: ActionReject, Resource: ResourceApplication}, ""},
		{"admin replies to message", admin, Request{Action: ActionReply, Resource: ResourceMessage}, ""},
		{"admin resolves message", admin, Request{Action: ActionMarkResolved, Resource: ResourceMessage}, ""},
		{"admin deletes message", admin, Request{Action: ActionDelete, Resource: ResourceMessage}, shared.ReasonInsufficientRole},
		{"admin views report", admin, Request{Action: ActionView, Resource: ResourceReport}, shared.ReasonInsufficientRole},
		{"admin edits settings", admin, Request{Action: ActionEdit, Resource: ResourceSettings}, shared.ReasonInsufficientRole},
		{"admin exports", admin, Request{Action: ActionCreate, Resource: ResourceExport}, shared.ReasonInsufficientRole},

		{"user views land", user, Request{Action: ActionView, Resource: ResourceLand}, ""},
		{"user creates land", user, Request{Action: ActionCreate, Resource: ResourceLand}, shared.ReasonInsufficientRole},
		{"user deletes own land", user, Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(30)}, shared.ReasonInsufficientRole},
		{"user creates application", user, Request{Action: ActionCreate, Resource: ResourceApplication}, ""},
		{"user creates application for self", user, Request{Action: ActionCreate, Resource: ResourceApplication, OwnerID: owner(30)}, ""},
		{"user creates application for other", user, Request{Action: ActionCreate, Resource: ResourceApplication, OwnerID: owner(31)}, shared.ReasonOwnershipViolation},
		{"user views own application", user, Request{Action: ActionView, Resource: ResourceApplication, OwnerID: owner(30)}, ""},
		{"user views other application", user, Request{Action: ActionView, Resource: ResourceApplication, OwnerID: owner(31)}, shared.ReasonOwnershipViolation},
		{"user approves application", user, Request{Action: ActionApprove, Resource: ResourceApplication, OwnerID: owner(30)}, shared.ReasonInsufficientRole},
		{"user edits own profile", user, Request{Action: ActionEdit, Resource: ResourceProfile, OwnerID: owner(30)}, ""},
		{"user views other profile", user, Request{Action: ActionView, Resource: ResourceProfile, OwnerID: owner(31)}, shared.ReasonOwnershipViolation},
		{"user views message", user, Request{Action: ActionView, Resource: ResourceMessage}, shared.ReasonInsufficientRole},
		{"user views user list", user, Request{Action: ActionView, Resource: ResourceUser, TargetRole: RoleUser}, shared.ReasonInsufficientRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grant := Authorize(tc.p, tc.req)
			if tc.reason == "" {
				assert.True(t, grant.Allowed)
				assert.NoError(t, grant.Err())
				return
			}
			assert.False(t, grant.Allowed)
			assert.Equal(t, tc.reason, grant.Reason)
			assert.ErrorIs(t, grant.Err(), shared.ErrForbidden)
		})
	}
}

func TestAuthorizeAdminDeletesOtherAdminsLand(t *testing.T) {
	grant := Authorize(Principal{ID: 10, Role: RoleAdmin}, Request{Action: ActionDelete, Resource: ResourceLand, OwnerID: owner(11)})

	reason, ok := shared.DenyReasonOf(grant.Err())
	require.True(t, ok)
	assert.Equal(t, shared.ReasonOwnershipViolation, reason)
}

func TestAuthorizeSuperAdminSelfProtection(t *testing.T) {
	root := Principal{ID: 1, Role: RoleSuperAdmin}

	for _, action := range []Action{ActionRestrict, ActionDelete} {
		for _, resource := range []Resource{ResourceUser, ResourceProfile} {
			grant := Authorize(root, Request{Action: action, Resource: resource, OwnerID: owner(1), TargetRole: RoleSuperAdmin})
			assert.False(t, grant.Allowed, "%s %s", action, resource)
			assert.ErrorIs(t, grant.Err(), shared.ErrForbidden)
			assert.Equal(t, shared.ReasonOwnershipViolation, grant.Reason)
		}
	}

	assert.True(t, Authorize(root, Request{Action: ActionRestrict, Resource: ResourceUser, OwnerID: owner(2), TargetRole: RoleAdmin}).Allowed)
	assert.True(t, Authorize(root, Request{Action: ActionEdit, Resource: ResourceProfile, OwnerID: owner(1)}).Allowed)
	for _, resource := range allResources {
		for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionApprove} {
			assert.True(t, Authorize(root, Request{Action: action, Resource: resource}).Allowed, "%s %s", action, resource)
		}
	}
}

func TestAuthorizeRestrictedPrincipal(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAdmin, RoleSuperAdmin} {
		p := Principal{ID: 5, Role: role, IsRestricted: true}

		assert.True(t, Authorize(p, Request{Action: ActionView, Resource: ResourceProfile, OwnerID: owner(5)}).Allowed)
		assert.False(t, Authorize(p, Request{Action: ActionView, Resource: ResourceProfile, OwnerID: owner(6)}).Allowed)
		assert.False(t, Authorize(p, Request{Action: ActionEdit, Resource: ResourceProfile, OwnerID: owner(5)}).Allowed)

		for _, resource := range allResources {
			if resource == ResourceProfile {
				continue
			}
			for _, action := range allActions {
				grant := Authorize(p, Request{Action: action, Resource: resource, OwnerID: owner(5), TargetRole: RoleUser})
				require.False(t, grant.Allowed, "%s %s %s", role, action, resource)
				assert.Equal(t, shared.ReasonRestrictedAccount, grant.Reason)
			}
		}
	}
}

func TestAuthorizeDeterministic(t *testing.T) {
	principals := []Principal{
		{ID: 1, Role: RoleSuperAdmin},
		{ID: 10, Role: RoleAdmin},
		{ID: 30, Role: RoleUser},
		{ID: 40, Role: Role("owner")},
		{ID: 50},
	}
	for _, p := range principals {
		for _, resource := range allResources {
			for _, action := range allActions {
				req := Request{Action: action, Resource: resource, OwnerID: owner(p.ID), TargetRole: RoleUser}
				assert.Equal(t, Authorize(p, req), Authorize(p, req))
			}
		}
	}
}

func TestAuthorizeUnknownRoleDenied(t *testing.T) {
	for _, role := range []Role{"", "owner", "SUPER_ADMIN"} {
		p := Principal{ID: 7, Role: role}
		for _, resource := range allResources {
			for _, action := range allActions {
				grant := Authorize(p, Request{Action: action, Resource: resource, OwnerID: owner(7)})
				require.False(t, grant.Allowed, "%q %s %s", role, action, resource)
				assert.Equal(t, shared.ReasonInsufficientRole, grant.Reason)
			}
		}
	}
}

func TestRequireRole(t *testing.T) {
	assert.NoError(t, RequireRole(Principal{Role: RoleAdmin}, RoleAdmin, RoleSuperAdmin))
	assert.NoError(t, RequireRole(Principal{Role: RoleSuperAdmin}, RoleSuperAdmin))

	for _, p := range []Principal{{Role: RoleUser}, {Role: ""}, {Role: "root"}} {
		err := RequireRole(p, RoleAdmin, RoleSuperAdmin)
		require.Error(t, err)
		var fe *shared.ForbiddenError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, shared.ReasonInsufficientRole, fe.Reason)
	}
	assert.Error(t, RequireRole(Principal{Role: RoleSuperAdmin}))
	assert.Error(t, RequireRole(Principal{Role: ""}, ""))

	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		restricted := Principal{ID: 1, Role: role, IsRestricted: true}
		err := RequireRole(restricted, RoleAdmin, RoleSuperAdmin)
		require.Error(t, err, role)
		reason, ok := shared.DenyReasonOf(err)
		require.True(t, ok)
		assert.Equal(t, shared.ReasonRestrictedAccount, reason)
		assert.Equal(t, reason, Authorize(restricted, Request{Action: ActionView, Resource: ResourceReport}).Reason)
	}
}

func TestVisibleRoles(t *testing.T) {
	assert.ElementsMatch(t, []Role{RoleUser, RoleAdmin, RoleSuperAdmin}, VisibleRoles(Principal{Role: RoleSuperAdmin}))
	assert.Equal(t, []Role{RoleUser}, VisibleRoles(Principal{Role: RoleAdmin}))
	assert.Empty(t, VisibleRoles(Principal{Role: RoleUser}))
	assert.Empty(t, VisibleRoles(Principal{Role: RoleSuperAdmin, IsRestricted: true}))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Super_Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, role)

	_, err = ParseRole("superadmin")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)

	assert.True(t, RoleAdmin.IsPrivileged())
	assert.False(t, RoleUser.IsPrivileged())
}
