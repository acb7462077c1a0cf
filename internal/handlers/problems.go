package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// ProblemHandler exposes problem report endpoints.
type ProblemHandler struct {
	problems *services.ProblemService
}

func NewProblemHandler(problems *services.ProblemService) *ProblemHandler {
	return &ProblemHandler{problems: problems}
}

// POST /api/problems
func (h *ProblemHandler) Create(c *gin.Context) {
	var req services.CreateProblemInput
	if !bindAndValidate(c, &req) {
		return
	}

	problem, err := h.problems.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, problem)
}

// GET /api/workspaces/:id/problems
func (h *ProblemHandler) List(c *gin.Context) {
	problems, err := h.problems.List(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Query("mentor_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, problems)
}

// GET /api/problems/:id
func (h *ProblemHandler) Get(c *gin.Context) {
	problem, err := h.problems.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, problem)
}

// PATCH /api/problems/:id
func (h *ProblemHandler) Update(c *gin.Context) {
	var req services.UpdateProblemInput
	if !bindAndValidate(c, &req) {
		return
	}

	problem, err := h.problems.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, problem)
}

// DELETE /api/problems/:id
func (h *ProblemHandler) Delete(c *gin.Context) {
	if err := h.problems.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
