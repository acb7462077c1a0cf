package api

import (
	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/handlers"
)

func registerProblemRoutes(protected *gin.RouterGroup, h *handlers.ProblemHandler) {
	protected.GET("/workspaces/:id/problems", h.List)

	problems := protected.Group("/problems")
	{
		problems.POST("", h.Create)
		problems.GET("/:id", h.Get)
		problems.PATCH("/:id", h.Update)
		problems.DELETE("/:id", h.Delete)
	}
}
