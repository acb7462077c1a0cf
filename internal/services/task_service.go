package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/filestore"
	"github.com/crewdeck/crewdeck/internal/models"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/logger"
)

// CreateTaskInput describes the fields accepted when creating a task.
// Media carries an optional base64 payload stored on disk before insert.
type CreateTaskInput struct {
	WorkspaceID string     `json:"workspace_id" validate:"required,uuid"`
	Title       string     `json:"title" validate:"required,min=1,max=256"`
	Description *string    `json:"description,omitempty"`
	Media       string     `json:"media,omitempty"`
	MediaKind   string     `json:"media_kind,omitempty" validate:"omitempty,media_kind"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Importance  string     `json:"importance,omitempty" validate:"omitempty,task_importance"`
	Category    *string    `json:"category,omitempty"`
	AssigneeID  string     `json:"assignee_id" validate:"required,uuid"`
}

// UpdateTaskInput enumerates mutable task attributes.
type UpdateTaskInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,task_status"`
	Importance  *string    `json:"importance,omitempty" validate:"omitempty,task_importance"`
	Category    *string    `json:"category,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
}

// TaskFilters narrows task listings.
type TaskFilters struct {
	Status     string
	Importance string
	AssigneeID string
}

// TaskService manages tasks inside a workspace.
type TaskService struct {
	db    *gorm.DB
	files filestore.Store
}

// NewTaskService constructs a TaskService. The file store may be nil when
// media uploads are disabled.
func NewTaskService(db *gorm.DB, files filestore.Store) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	return &TaskService{db: db, files: files}, nil
}

// Create inserts a task assigned by one member to another. Both assigner
// and assignee must belong to the workspace.
func (s *TaskService) Create(ctx context.Context, assignerID string, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("task title is required")
	}

	importance := input.Importance
	if importance == "" {
		importance = models.TaskImportanceMedium
	}
	if !models.ValidTaskImportance(importance) {
		return nil, apperrors.NewBadRequest("unknown task importance")
	}

	for _, memberID := range []string{assignerID, input.AssigneeID} {
		if err := s.requireMembership(ctx, memberID, input.WorkspaceID); err != nil {
			return nil, err
		}
	}

	var mediaPath *string
	if input.Media != "" {
		path, err := s.storeMedia(input.MediaKind, input.Media)
		if err != nil {
			return nil, err
		}
		mediaPath = &path
	}

	task := &models.Task{
		WorkspaceID: input.WorkspaceID,
		Title:       title,
		Description: input.Description,
		MediaPath:   mediaPath,
		DueDate:     input.DueDate,
		Status:      models.TaskStatusTodo,
		Importance:  importance,
		Category:    input.Category,
		AssignerID:  assignerID,
		AssigneeID:  input.AssigneeID,
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		s.discardMedia(mediaPath)
		return nil, fmt.Errorf("task service: create task: %w", err)
	}
	return task, nil
}

// Get loads a single task, checking the caller's workspace membership.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: find task: %w", err)
	}

	if err := s.requireMembership(ctx, userID, task.WorkspaceID); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns workspace tasks matching the filters, newest first.
func (s *TaskService) List(ctx context.Context, userID, workspaceID string, filters TaskFilters) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if filters.Status != "" {
		if !models.ValidTaskStatus(filters.Status) {
			return nil, apperrors.NewBadRequest("unknown task status")
		}
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Importance != "" {
		if !models.ValidTaskImportance(filters.Importance) {
			return nil, apperrors.NewBadRequest("unknown task importance")
		}
		query = query.Where("importance = ?", filters.Importance)
	}
	if filters.AssigneeID != "" {
		query = query.Where("assignee_id = ?", filters.AssigneeID)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, nil
}

// Update applies partial changes to a task.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("task title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.Status != nil {
		if !models.ValidTaskStatus(*input.Status) {
			return nil, apperrors.NewBadRequest("unknown task status")
		}
		updates["status"] = *input.Status
	}
	if input.Importance != nil {
		if !models.ValidTaskImportance(*input.Importance) {
			return nil, apperrors.NewBadRequest("unknown task importance")
		}
		updates["importance"] = *input.Importance
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.AssigneeID != nil {
		if err := s.requireMembership(ctx, *input.AssigneeID, task.WorkspaceID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *input.AssigneeID
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task service: update task: %w", err)
	}
	return task, nil
}

// Delete removes a task and its stored media.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return fmt.Errorf("task service: delete task: %w", err)
	}

	s.discardMedia(task.MediaPath)
	return nil
}

// Media loads the stored media payload for a task.
func (s *TaskService) Media(ctx context.Context, userID, taskID string) ([]byte, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.MediaPath == nil || s.files == nil {
		return nil, apperrors.ErrNotFound
	}

	data, err := s.files.Load(*task.MediaPath)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load media: %w", err)
	}
	return data, nil
}

func (s *TaskService) storeMedia(kind, encoded string) (string, error) {
	if s.files == nil {
		return "", apperrors.NewBadRequest("media uploads are disabled")
	}

	storeKind := filestore.KindImage
	if kind == string(filestore.KindVideo) {
		storeKind = filestore.KindVideo
	}

	path, err := s.files.Save(storeKind, encoded)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) || errors.Is(err, filestore.ErrUnsupportedMedia) {
			return "", apperrors.NewBadRequest(err.Error())
		}
		return "", fmt.Errorf("task service: store media: %w", err)
	}
	return path, nil
}

func (s *TaskService) discardMedia(path *string) {
	if path == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(*path); err != nil {
		logger.WithModule("tasks").Warn("remove media failed", zap.Error(err))
	}
}

func (s *TaskService) requireMembership(ctx context.Context, userID, workspaceID string) error {
	if userID == "" {
		return apperrors.ErrUnauthorized
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("task service: check membership: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
