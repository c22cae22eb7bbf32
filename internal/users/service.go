package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/landhub/internal/audit"
	"github.com/odyssey-erp/landhub/internal/rbac"
)

// RepositoryPort defines data access methods for account administration.
type RepositoryPort interface {
	IdentityStore
	SetRestricted(ctx context.Context, id int64, restricted bool) error
}

// Auditor records privileged actions.
type Auditor interface {
	Record(ctx context.Context, p rbac.Principal, action string, target *audit.Target, details any, ipAddress string) error
}

// Service handles account administration.
type Service struct {
	repo   RepositoryPort
	audit  Auditor
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: auditor, logger: logger}
}

// ListVisible returns the accounts p may see. The role filter narrows the query and every
// returned row is still authorized individually.
func (s *Service) ListVisible(ctx context.Context, p rbac.Principal, limit, offset int) ([]User, error) {
	if err := rbac.Authorize(p, rbac.Request{
		Action:     rbac.ActionView,
		Resource:   rbac.ResourceUser,
		TargetRole: rbac.RoleUser,
	}).Err(); err != nil {
		return nil, err
	}
	list, err := s.repo.FetchUsersByRole(ctx, RoleFilter{Roles: rbac.VisibleRoles(p), Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(list))
	for _, u := range list {
		owner := u.ID
		grant := rbac.Authorize(p, rbac.Request{
			Action:     rbac.ActionView,
			Resource:   rbac.ResourceUser,
			OwnerID:    &owner,
			TargetRole: u.Role,
		})
		if !grant.Allowed {
			s.logger.Warn("identity store returned a row outside caller visibility",
				slog.Int64("principal_id", p.ID),
				slog.Int64("user_id", u.ID),
				slog.String("role", string(u.Role)),
			)
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// SetRestriction flips the restriction flag on account id after authorizing p against it.
func (s *Service) SetRestriction(ctx context.Context, p rbac.Principal, id int64, restricted bool, ipAddress string) (*User, error) {
	target, err := s.repo.FetchUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := target.ID
	if err := rbac.Authorize(p, rbac.Request{
		Action:     rbac.ActionRestrict,
		Resource:   rbac.ResourceUser,
		OwnerID:    &owner,
		TargetRole: target.Role,
	}).Err(); err != nil {
		return nil, err
	}
	previous := target.IsRestricted
	if err := s.repo.SetRestricted(ctx, id, restricted); err != nil {
		return nil, err
	}
	target.IsRestricted = restricted

	action := "user.restrict"
	if !restricted {
		action = "user.unrestrict"
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, p, action, &audit.Target{Type: "user", ID: strconv.FormatInt(id, 10)},
			map[string]any{"previous": previous, "restricted": restricted}, ipAddress)
	}
	return target, nil
}
