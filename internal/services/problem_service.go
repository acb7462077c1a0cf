package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/filestore"
	"github.com/crewdeck/crewdeck/internal/models"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/logger"
)

// CreateProblemInput describes a problem report raised by a worker.
type CreateProblemInput struct {
	WorkspaceID string  `json:"workspace_id" validate:"required,uuid"`
	Description *string `json:"description,omitempty"`
	Media       string  `json:"media,omitempty"`
	MediaKind   string  `json:"media_kind,omitempty" validate:"omitempty,media_kind"`
	MentorID    string  `json:"mentor_id" validate:"required,uuid"`
}

// UpdateProblemInput enumerates mutable problem attributes.
type UpdateProblemInput struct {
	Description *string `json:"description,omitempty"`
	MentorID    *string `json:"mentor_id,omitempty"`
}

// ProblemService manages problem reports inside a workspace.
type ProblemService struct {
	db    *gorm.DB
	files filestore.Store
}

// NewProblemService constructs a ProblemService instance.
func NewProblemService(db *gorm.DB, files filestore.Store) (*ProblemService, error) {
	if db == nil {
		return nil, errors.New("problem service: db is required")
	}
	return &ProblemService{db: db, files: files}, nil
}

// Create records a problem raised by workerID and routed to a mentor. Both
// must belong to the workspace.
func (s *ProblemService) Create(ctx context.Context, workerID string, input CreateProblemInput) (*models.Problem, error) {
	ctx = ensureContext(ctx)

	for _, memberID := range []string{workerID, input.MentorID} {
		if err := s.requireMembership(ctx, memberID, input.WorkspaceID); err != nil {
			return nil, err
		}
	}

	var mediaPath *string
	if input.Media != "" {
		if s.files == nil {
			return nil, apperrors.NewBadRequest("media uploads are disabled")
		}

		kind := filestore.KindImage
		if input.MediaKind == string(filestore.KindVideo) {
			kind = filestore.KindVideo
		}

		path, err := s.files.Save(kind, input.Media)
		if err != nil {
			if errors.Is(err, filestore.ErrTooLarge) || errors.Is(err, filestore.ErrUnsupportedMedia) {
				return nil, apperrors.NewBadRequest(err.Error())
			}
			return nil, fmt.Errorf("problem service: store media: %w", err)
		}
		mediaPath = &path
	}

	problem := &models.Problem{
		WorkspaceID: input.WorkspaceID,
		Description: input.Description,
		MediaPath:   mediaPath,
		WorkerID:    workerID,
		MentorID:    input.MentorID,
	}

	if err := s.db.WithContext(ctx).Create(problem).Error; err != nil {
		s.discardMedia(mediaPath)
		return nil, fmt.Errorf("problem service: create problem: %w", err)
	}
	return problem, nil
}

// Get loads one problem, checking the caller's workspace membership.
func (s *ProblemService) Get(ctx context.Context, userID, problemID string) (*models.Problem, error) {
	ctx = ensureContext(ctx)

	var problem models.Problem
	if err := s.db.WithContext(ctx).First(&problem, "id = ?", problemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("problem service: find problem: %w", err)
	}

	if err := s.requireMembership(ctx, userID, problem.WorkspaceID); err != nil {
		return nil, err
	}
	return &problem, nil
}

// List returns workspace problems, newest first. Mentors typically filter
// to the reports routed to them.
func (s *ProblemService) List(ctx context.Context, userID, workspaceID, mentorID string) ([]models.Problem, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if mentorID != "" {
		query = query.Where("mentor_id = ?", mentorID)
	}

	var problems []models.Problem
	if err := query.Order("created_at DESC").Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("problem service: list problems: %w", err)
	}
	return problems, nil
}

// Update amends a problem report. Only the raising worker may edit it; a
// replacement mentor must belong to the same workspace.
func (s *ProblemService) Update(ctx context.Context, userID, problemID string, input UpdateProblemInput) (*models.Problem, error) {
	ctx = ensureContext(ctx)

	problem, err := s.Get(ctx, userID, problemID)
	if err != nil {
		return nil, err
	}
	if problem.WorkerID != userID {
		return nil, apperrors.ErrForbidden
	}

	updates := map[string]any{}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MentorID != nil {
		if err := s.requireMembership(ctx, *input.MentorID, problem.WorkspaceID); err != nil {
			return nil, err
		}
		updates["mentor_id"] = *input.MentorID
	}
	if len(updates) == 0 {
		return problem, nil
	}

	if err := s.db.WithContext(ctx).Model(problem).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("problem service: update problem: %w", err)
	}
	return problem, nil
}

// Delete removes a problem report. Only the raising worker or the assigned
// mentor may delete it.
func (s *ProblemService) Delete(ctx context.Context, userID, problemID string) error {
	ctx = ensureContext(ctx)

	problem, err := s.Get(ctx, userID, problemID)
	if err != nil {
		return err
	}
	if problem.WorkerID != userID && problem.MentorID != userID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(problem).Error; err != nil {
		return fmt.Errorf("problem service: delete problem: %w", err)
	}

	s.discardMedia(problem.MediaPath)
	return nil
}

func (s *ProblemService) discardMedia(path *string) {
	if path == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(*path); err != nil {
		logger.WithModule("problems").Warn("remove media failed", zap.Error(err))
	}
}

func (s *ProblemService) requireMembership(ctx context.Context, userID, workspaceID string) error {
	if userID == "" {
		return apperrors.ErrUnauthorized
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("problem service: check membership: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
