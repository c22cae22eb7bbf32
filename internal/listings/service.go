package listings

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/landhub/internal/audit"
	"github.com/odyssey-erp/landhub/internal/rbac"
)

// RepositoryPort defines data access methods for listings.
type RepositoryPort interface {
	LandOwner(ctx context.Context, id int64) (int64, error)
	CreateLand(ctx context.Context, ownerID int64, input LandInput) (*Land, error)
	DeleteLand(ctx context.Context, id int64) error
	ApplicationOwner(ctx context.Context, id int64) (int64, error)
	DecideApplication(ctx context.Context, id int64, status ApplicationStatus, reviewerID int64) (*Application, error)
}

// Auditor records privileged actions.
type Auditor interface {
	Record(ctx context.Context, p rbac.Principal, action string, target *audit.Target, details any, ipAddress string) error
}

// Service authorizes listing actions, runs them and records the privileged ones.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor}
}

// CreateLand creates a listing owned by p.
func (s *Service) CreateLand(ctx context.Context, p rbac.Principal, input LandInput, ipAddress string) (*Land, error) {
	if err := rbac.Authorize(p, rbac.Request{Action: rbac.ActionCreate, Resource: rbac.ResourceLand}).Err(); err != nil {
		return nil, err
	}
	land, err := s.repo.CreateLand(ctx, p.ID, input)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, "land.create", "land", land.ID, map[string]any{"title": land.Title, "location": land.Location}, ipAddress)
	return land, nil
}

// DeleteLand removes land id. Admins may delete only listings they own.
func (s *Service) DeleteLand(ctx context.Context, p rbac.Principal, id int64, ipAddress string) error {
	owner, err := s.repo.LandOwner(ctx, id)
	if err != nil {
		return err
	}
	if err := rbac.Authorize(p, rbac.Request{Action: rbac.ActionDelete, Resource: rbac.ResourceLand, OwnerID: &owner}).Err(); err != nil {
		return err
	}
	if err := s.repo.DeleteLand(ctx, id); err != nil {
		return err
	}
	s.record(ctx, p, "land.delete", "land", id, map[string]any{"owner_id": owner}, ipAddress)
	return nil
}

// DecideApplication approves or rejects application id.
func (s *Service) DecideApplication(ctx context.Context, p rbac.Principal, id int64, approve bool, ipAddress string) (*Application, error) {
	action, status, label := rbac.ActionReject, ApplicationRejected, "application.reject"
	if approve {
		action, status, label = rbac.ActionApprove, ApplicationApproved, "application.approve"
	}
	applicant, err := s.repo.ApplicationOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Authorize(p, rbac.Request{Action: action, Resource: rbac.ResourceApplication, OwnerID: &applicant}).Err(); err != nil {
		return nil, err
	}
	app, err := s.repo.DecideApplication(ctx, id, status, p.ID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, label, "application", id, map[string]any{"applicant_id": applicant, "land_id": app.LandID}, ipAddress)
	return app, nil
}

func (s *Service) record(ctx context.Context, p rbac.Principal, action, targetType string, id int64, details any, ipAddress string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, p, action, &audit.Target{Type: targetType, ID: strconv.FormatInt(id, 10)}, details, ipAddress)
}
