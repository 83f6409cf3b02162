package workspace

import (
	"context"
	"errors"
)

var ErrOnlyOwnerRemovesOwner = errors.New("workspace: only an owner can remove another owner")

type Service struct {
	Repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{Repo: repo}
}

func (s *Service) List(ctx context.Context, userID string) ([]Workspace, error) {
	return s.Repo.ListForUser(ctx, userID)
}

func (s *Service) Create(ctx context.Context, req CreateWorkspaceRequest, ownerID string) (*Workspace, error) {
	return s.Repo.Create(ctx, req.Name, req.Description, req.Deadline, ownerID)
}

func (s *Service) Get(ctx context.Context, id string) (*WorkspaceDetail, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateWorkspaceRequest) (*Workspace, error) {
	return s.Repo.Update(ctx, id, req)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// AddMember ensures a user exists for the email and attaches them with the
// given role. The role defaults to EDITOR.
func (s *Service) AddMember(ctx context.Context, workspaceID string, req AddMemberRequest) (*Member, error) {
	role := req.Role
	if role == "" {
		role = RoleEditor
	}
	userID, err := s.Repo.EnsureUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	return s.Repo.AddMember(ctx, workspaceID, userID, role)
}

// RemoveMember drops a membership. Removing an OWNER requires the caller to
// be an OWNER themselves.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, userID, callerID string) error {
	target, err := s.Repo.GetMemberRole(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if target == RoleOwner {
		caller, err := s.Repo.GetMemberRole(ctx, workspaceID, callerID)
		if err != nil {
			return err
		}
		if caller != RoleOwner {
			return ErrOnlyOwnerRemovesOwner
		}
	}
	return s.Repo.RemoveMember(ctx, workspaceID, userID)
}
