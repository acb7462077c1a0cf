package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tokens"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

// CreateWorkspaceInput describes the fields accepted when opening a workspace.
type CreateWorkspaceInput struct {
	Name        string          `json:"name" validate:"required,min=1,max=128"`
	Geolocation *string         `json:"geolocation,omitempty"`
	StartDate   time.Time       `json:"start_date" validate:"required"`
	FinishDate  *datatypes.Date `json:"finish_date,omitempty"`
}

// UpdateWorkspaceInput enumerates mutable workspace attributes.
type UpdateWorkspaceInput struct {
	Name         *string         `json:"name,omitempty"`
	Geolocation  *string         `json:"geolocation,omitempty"`
	PlanFileName *string         `json:"plan_file_name,omitempty"`
	FinishDate   *datatypes.Date `json:"finish_date,omitempty"`
}

// WorkspaceService manages workspace lifecycle, membership, and invitations.
type WorkspaceService struct {
	db     *gorm.DB
	tokens *tokens.Service
}

// NewWorkspaceService constructs a WorkspaceService instance.
func NewWorkspaceService(db *gorm.DB, tokenService *tokens.Service) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}
	if tokenService == nil {
		return nil, errors.New("workspace service: token service is required")
	}
	return &WorkspaceService{db: db, tokens: tokenService}, nil
}

// Create opens a workspace and enrols the owner as its first member. The
// workspace row, the owner role, and the membership are one transaction.
func (s *WorkspaceService) Create(ctx context.Context, ownerID string, input CreateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("workspace name is required")
	}
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	workspace := &models.Workspace{
		Name:        name,
		OwnerID:     ownerID,
		Geolocation: input.Geolocation,
		StartDate:   input.StartDate,
		FinishDate:  input.FinishDate,
	}
	if workspace.StartDate.IsZero() {
		workspace.StartDate = time.Now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return fmt.Errorf("workspace service: create workspace: %w", err)
		}

		role := &models.WorkspaceRole{UserID: ownerID, Name: models.RoleOwner}
		if err := tx.Create(role).Error; err != nil {
			return fmt.Errorf("workspace service: create owner role: %w", err)
		}

		member := &models.WorkspaceMember{
			UserID:          ownerID,
			WorkspaceID:     workspace.ID,
			WorkspaceRoleID: role.ID,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("workspace service: enrol owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return workspace, nil
}

// Get loads a workspace the given user belongs to.
func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, "id = ?", workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("workspace service: find workspace: %w", err)
	}
	return &workspace, nil
}

// List returns the workspaces the user is a member of.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]models.Workspace, error) {
	ctx = ensureContext(ctx)

	var workspaces []models.Workspace
	err := s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at DESC").
		Find(&workspaces).Error
	if err != nil {
		return nil, fmt.Errorf("workspace service: list workspaces: %w", err)
	}
	return workspaces, nil
}

// Update applies partial changes to a workspace. Only the owner may update.
func (s *WorkspaceService) Update(ctx context.Context, userID, workspaceID string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	workspace, err := s.requireOwner(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("workspace name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Geolocation != nil {
		updates["geolocation"] = *input.Geolocation
	}
	if input.PlanFileName != nil {
		updates["plan_file_name"] = *input.PlanFileName
	}
	if input.FinishDate != nil {
		updates["finish_date"] = *input.FinishDate
	}
	if len(updates) == 0 {
		return workspace, nil
	}

	if err := s.db.WithContext(ctx).Model(workspace).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("workspace service: update workspace: %w", err)
	}
	return workspace, nil
}

// Delete removes a workspace. Only the owner may delete; memberships go
// with it via the cascade constraint.
func (s *WorkspaceService) Delete(ctx context.Context, userID, workspaceID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.requireOwner(ctx, userID, workspaceID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", workspace.ID).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete memberships: %w", err)
		}
		if err := tx.Where("workspace_id = ?", workspace.ID).Delete(&models.WorkspaceInvitation{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete invitations: %w", err)
		}
		if err := tx.Delete(workspace).Error; err != nil {
			return fmt.Errorf("workspace service: delete workspace: %w", err)
		}
		return nil
	})
}

// ListMembers returns workspace memberships with user and role preloaded.
func (s *WorkspaceService) ListMembers(ctx context.Context, userID, workspaceID string) ([]models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var members []models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role").
		Where("workspace_id = ?", workspaceID).
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("workspace service: list members: %w", err)
	}
	return members, nil
}

// MemberOverview aggregates one member's profile, role, and workspace
// activity into a single view for the owner.
type MemberOverview struct {
	Member       models.WorkspaceMember `json:"member"`
	TasksByState map[string]int64       `json:"tasks_by_status"`
	OpenProblems int64                  `json:"open_problems"`
}

// GetMemberOverview builds the singular member view. Owner only.
func (s *WorkspaceService) GetMemberOverview(ctx context.Context, userID, workspaceID, memberID string) (*MemberOverview, error) {
	ctx = ensureContext(ctx)

	if _, err := s.requireOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role").
		Where("workspace_id = ? AND user_id = ?", workspaceID, memberID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("workspace service: find member: %w", err)
	}

	type statusCount struct {
		Status string
		Total  int64
	}
	var counts []statusCount
	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Select("status, COUNT(*) AS total").
		Where("workspace_id = ? AND assignee_id = ?", workspaceID, memberID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("workspace service: count tasks: %w", err)
	}

	tasksByState := make(map[string]int64, len(counts))
	for _, c := range counts {
		tasksByState[c.Status] = c.Total
	}

	var openProblems int64
	err = s.db.WithContext(ctx).Model(&models.Problem{}).
		Where("workspace_id = ? AND worker_id = ?", workspaceID, memberID).
		Count(&openProblems).Error
	if err != nil {
		return nil, fmt.Errorf("workspace service: count problems: %w", err)
	}

	return &MemberOverview{
		Member:       member,
		TasksByState: tasksByState,
		OpenProblems: openProblems,
	}, nil
}

// Invite issues a workspace invitation token for the email and dispatches
// it. Only the owner may invite. allowResend permits re-inviting while a
// previous invitation is still open.
func (s *WorkspaceService) Invite(ctx context.Context, userID, workspaceID, email string, allowResend bool) error {
	ctx = ensureContext(ctx)

	if _, err := s.requireOwner(ctx, userID, workspaceID); err != nil {
		return err
	}

	email = normaliseEmail(email)
	if email == "" {
		return apperrors.NewBadRequest("email is required")
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Joins("JOIN users ON users.id = workspace_members.user_id").
		Where("users.email = ? AND workspace_members.workspace_id = ?", email, workspaceID).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("workspace service: check membership: %w", err)
	}
	if existing > 0 {
		return apperrors.ErrAlreadyMember
	}

	purpose := tokens.WorkspaceInvitation{WorkspaceID: workspaceID}
	if _, err := s.tokens.Send(ctx, email, "", purpose, "", allowResend); err != nil {
		return translateTokenError(err)
	}
	return nil
}

// AcceptInvitation redeems an invitation token and enrols the invited
// account as a worker. Token consumption, role creation, and the
// membership insert commit or roll back together.
func (s *WorkspaceService) AcceptInvitation(ctx context.Context, token string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	var member *models.WorkspaceMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := s.tokens.RedeemInvitation(tx, token)
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("email = ?", invitation.Email).First(&user).Error; err != nil {
			return fmt.Errorf("workspace service: resolve invitee: %w", err)
		}

		role := &models.WorkspaceRole{UserID: user.ID, Name: models.RoleWorker}
		if err := tx.Create(role).Error; err != nil {
			return fmt.Errorf("workspace service: create worker role: %w", err)
		}

		member = &models.WorkspaceMember{
			UserID:          user.ID,
			WorkspaceID:     invitation.WorkspaceID,
			WorkspaceRoleID: role.ID,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("workspace service: enrol member: %w", err)
		}
		return nil
	})
	if err != nil {
		if tokens.IsClientError(err) {
			return nil, translateTokenError(err)
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return member, nil
}

func (s *WorkspaceService) requireMembership(ctx context.Context, userID, workspaceID string) error {
	if userID == "" {
		return apperrors.ErrUnauthorized
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("workspace service: check membership: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *WorkspaceService) requireOwner(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, "id = ?", workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("workspace service: find workspace: %w", err)
	}
	if workspace.OwnerID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &workspace, nil
}
