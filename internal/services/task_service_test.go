package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/filestore"
	"github.com/crewdeck/crewdeck/internal/models"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

func newTaskFixture(t *testing.T) (*TaskService, *gorm.DB, *models.User, *models.User, *models.Workspace) {
	t.Helper()

	db := openTestDB(t)
	store, err := filestore.NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	service, err := NewTaskService(db, store)
	require.NoError(t, err)

	manager := seedUser(t, db, "task-manager-"+t.Name()+"@example.com", "password-123", true)
	worker := seedUser(t, db, "task-worker-"+t.Name()+"@example.com", "password-123", true)
	workspace := seedWorkspace(t, db, manager, "Tasks "+t.Name())

	role := &models.WorkspaceRole{UserID: worker.ID, Name: models.RoleWorker}
	require.NoError(t, db.Create(role).Error)
	require.NoError(t, db.Create(&models.WorkspaceMember{
		UserID:          worker.ID,
		WorkspaceID:     workspace.ID,
		WorkspaceRoleID: role.ID,
	}).Error)

	return service, db, manager, worker, workspace
}

func pngPayload(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCreateTaskDefaultsAndMedia(t *testing.T) {
	service, _, manager, worker, workspace := newTaskFixture(t)
	ctx := context.Background()

	task, err := service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "  Pour foundation  ",
		AssigneeID:  worker.ID,
		Media:       pngPayload(t),
	})
	require.NoError(t, err)
	require.Equal(t, "Pour foundation", task.Title)
	require.Equal(t, models.TaskStatusTodo, task.Status)
	require.Equal(t, models.TaskImportanceMedium, task.Importance)
	require.NotNil(t, task.MediaPath)

	data, err := service.Media(ctx, worker.ID, task.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestCreateTaskRejectsOutsiders(t *testing.T) {
	service, db, manager, _, workspace := newTaskFixture(t)
	ctx := context.Background()
	outsider := seedUser(t, db, "task-outsider-"+t.Name()+"@example.com", "password-123", true)

	_, err := service.Create(ctx, outsider.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Sneaky task",
		AssigneeID:  manager.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Misassigned",
		AssigneeID:  outsider.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateTaskValidatesImportance(t *testing.T) {
	service, _, manager, worker, workspace := newTaskFixture(t)

	_, err := service.Create(context.Background(), manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Odd importance",
		AssigneeID:  worker.ID,
		Importance:  "CRITICAL",
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
}

func TestListTasksWithFilters(t *testing.T) {
	service, _, manager, worker, workspace := newTaskFixture(t)
	ctx := context.Background()

	first, err := service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "First",
		AssigneeID:  worker.ID,
		Importance:  models.TaskImportanceHigh,
	})
	require.NoError(t, err)
	_, err = service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Second",
		AssigneeID:  manager.ID,
	})
	require.NoError(t, err)

	status := models.TaskStatusInProgress
	_, err = service.Update(ctx, worker.ID, first.ID, UpdateTaskInput{Status: &status})
	require.NoError(t, err)

	inProgress, err := service.List(ctx, worker.ID, workspace.ID, TaskFilters{Status: models.TaskStatusInProgress})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	require.Equal(t, "First", inProgress[0].Title)

	mine, err := service.List(ctx, worker.ID, workspace.ID, TaskFilters{AssigneeID: worker.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = service.List(ctx, worker.ID, workspace.ID, TaskFilters{Status: "DONE"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
}

func TestUpdateTaskStatusTransitions(t *testing.T) {
	service, _, manager, worker, workspace := newTaskFixture(t)
	ctx := context.Background()

	task, err := service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Inspect scaffolding",
		AssigneeID:  worker.ID,
	})
	require.NoError(t, err)

	for _, status := range []string{
		models.TaskStatusHelpNeeded,
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
	} {
		updated, err := service.Update(ctx, worker.ID, task.ID, UpdateTaskInput{Status: &status})
		require.NoError(t, err)
		require.Equal(t, status, updated.Status)
	}

	bad := "FINISHED"
	_, err = service.Update(ctx, worker.ID, task.ID, UpdateTaskInput{Status: &bad})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
}

func TestDeleteTaskRemovesMedia(t *testing.T) {
	service, _, manager, worker, workspace := newTaskFixture(t)
	ctx := context.Background()

	task, err := service.Create(ctx, manager.ID, CreateTaskInput{
		WorkspaceID: workspace.ID,
		Title:       "Ephemeral",
		AssigneeID:  worker.ID,
		Media:       pngPayload(t),
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, manager.ID, task.ID))

	_, err = service.Get(ctx, manager.ID, task.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
