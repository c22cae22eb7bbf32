package rbac

import (
	"github.com/odyssey-erp/landhub/internal/shared"
)

// Request is the tuple evaluated by Authorize.
type Request struct {
	Action   Action
	Resource Resource
	// OwnerID is the recorded owner of the resource, nil when it has none yet.
	OwnerID *int64
	// TargetRole is the role of the target account for user-resource requests.
	TargetRole Role
}

// Grant is the outcome of one authorization decision.
type Grant struct {
	Allowed bool
	Reason  shared.DenyReason
}

// Err returns nil for an allowed grant and a ForbiddenError otherwise.
func (g Grant) Err() error {
	if g.Allowed {
		return nil
	}
	return shared.Forbidden(g.Reason)
}

func allow() Grant {
	return Grant{Allowed: true}
}

func deny(reason shared.DenyReason) Grant {
	return Grant{Allowed: false, Reason: reason}
}

// rule describes how a table cell is decided.
type rule int

const (
	ruleAlways rule = iota + 1
	ruleOwnerOnly
	ruleOwnerOrNew
	ruleTargetIsUser
)

type actionRules map[Action]rule

// adminTable lists everything an admin may do. Resources absent from the table (report,
// settings, export, profile of others) are denied.
var adminTable = map[Resource]actionRules{
	ResourceLand: {
		ActionCreate: ruleAlways,
		ActionEdit:   ruleAlways,
		ActionView:   ruleAlways,
		ActionDelete: ruleOwnerOnly,
	},
	ResourceUser: {
		ActionView: ruleTargetIsUser,
		ActionEdit: ruleTargetIsUser,
	},
	ResourceApplication: {
		ActionView:    ruleAlways,
		ActionApprove: ruleAlways,
		ActionReject:  ruleAlways,
	},
	ResourceMessage: {
		ActionView:         ruleAlways,
		ActionReply:        ruleAlways,
		ActionMarkResolved: ruleAlways,
	},
}

var userTable = map[Resource]actionRules{
	ResourceLand: {
		ActionView: ruleAlways,
	},
	ResourceApplication: {
		ActionView:   ruleOwnerOnly,
		ActionCreate: ruleOwnerOrNew,
	},
}

// Authorize evaluates req for p. Rules are checked in precedence order and the first match
// wins; anything unmatched is denied.
func Authorize(p Principal, req Request) Grant {
	if p.IsRestricted {
		if req.Resource == ResourceProfile && req.Action == ActionView && ownedBy(req.OwnerID, p.ID) {
			return allow()
		}
		return deny(shared.ReasonRestrictedAccount)
	}

	switch p.Role {
	case RoleSuperAdmin:
		if isSelfDestructive(p, req) {
			return deny(shared.ReasonOwnershipViolation)
		}
		return allow()
	case RoleAdmin:
		return evaluate(adminTable, p, req)
	case RoleUser:
		if req.Resource == ResourceProfile {
			if ownedBy(req.OwnerID, p.ID) {
				return allow()
			}
			return deny(shared.ReasonOwnershipViolation)
		}
		return evaluate(userTable, p, req)
	}
	return deny(shared.ReasonInsufficientRole)
}

// RequireRole is the coarse endpoint gate. Restricted principals and unknown or empty roles
// are always denied; no role-gated endpoint serves the own-profile read.
func RequireRole(p Principal, allowed ...Role) error {
	if p.IsRestricted {
		return shared.Forbidden(shared.ReasonRestrictedAccount)
	}
	if !p.Role.Valid() {
		return shared.Forbidden(shared.ReasonInsufficientRole)
	}
	for _, role := range allowed {
		if role == p.Role {
			return nil
		}
	}
	return shared.Forbidden(shared.ReasonInsufficientRole)
}

// VisibleRoles returns the account roles p may list. It backs the data-layer filter that
// duplicates the admin visibility rule in Authorize.
func VisibleRoles(p Principal) []Role {
	switch {
	case p.IsRestricted:
		return nil
	case p.Role == RoleSuperAdmin:
		return []Role{RoleUser, RoleAdmin, RoleSuperAdmin}
	case p.Role == RoleAdmin:
		return []Role{RoleUser}
	}
	return nil
}

func evaluate(table map[Resource]actionRules, p Principal, req Request) Grant {
	rules, ok := table[req.Resource]
	if !ok {
		return deny(shared.ReasonInsufficientRole)
	}
	r, ok := rules[req.Action]
	if !ok {
		return deny(shared.ReasonInsufficientRole)
	}
	switch r {
	case ruleAlways:
		return allow()
	case ruleOwnerOnly:
		if ownedBy(req.OwnerID, p.ID) {
			return allow()
		}
		return deny(shared.ReasonOwnershipViolation)
	case ruleOwnerOrNew:
		if req.OwnerID == nil || *req.OwnerID == p.ID {
			return allow()
		}
		return deny(shared.ReasonOwnershipViolation)
	case ruleTargetIsUser:
		if req.TargetRole == RoleUser {
			return allow()
		}
		return deny(shared.ReasonInsufficientRole)
	}
	return deny(shared.ReasonInsufficientRole)
}

func isSelfDestructive(p Principal, req Request) bool {
	if req.Resource != ResourceUser && req.Resource != ResourceProfile {
		return false
	}
	if req.Action != ActionDelete && req.Action != ActionRestrict {
		return false
	}
	return ownedBy(req.OwnerID, p.ID)
}

func ownedBy(owner *int64, id int64) bool {
	return owner != nil && *owner == id
}
