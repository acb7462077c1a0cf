package api

import (
	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/handlers"
)

func registerTaskRoutes(protected *gin.RouterGroup, h *handlers.TaskHandler) {
	protected.GET("/workspaces/:id/tasks", h.List)

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", h.Create)
		tasks.GET("/:id", h.Get)
		tasks.PATCH("/:id", h.Update)
		tasks.DELETE("/:id", h.Delete)
		tasks.GET("/:id/media", h.Media)
	}
}
