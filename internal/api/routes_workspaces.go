package api

import (
	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/handlers"
)

func registerWorkspaceRoutes(api, protected *gin.RouterGroup, h *handlers.WorkspaceHandler) {
	// Invitation acceptance authenticates by token: the invitee may not be
	// logged in when following the emailed link.
	api.POST("/workspaces/invitations/accept/:token", h.AcceptInvitation)

	workspaces := protected.Group("/workspaces")
	{
		workspaces.POST("", h.Create)
		workspaces.GET("", h.List)
		workspaces.GET("/:id", h.Get)
		workspaces.PATCH("/:id", h.Update)
		workspaces.DELETE("/:id", h.Delete)
		workspaces.GET("/:id/members", h.ListMembers)
		workspaces.GET("/:id/members/:userId", h.MemberOverview)
		workspaces.POST("/:id/invitations", h.Invite)
	}
}
