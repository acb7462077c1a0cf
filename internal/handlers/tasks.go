package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// TaskHandler exposes task endpoints scoped to a workspace.
type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskInput
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// GET /api/workspaces/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	filters := services.TaskFilters{
		Status:     c.Query("status"),
		Importance: c.Query("importance"),
		AssigneeID: c.Query("assignee_id"),
	}

	tasks, err := h.tasks.List(c.Request.Context(), middleware.UserID(c), c.Param("id"), filters)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, tasks)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var req services.UpdateTaskInput
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/tasks/:id/media
func (h *TaskHandler) Media(c *gin.Context) {
	data, err := h.tasks.Media(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
