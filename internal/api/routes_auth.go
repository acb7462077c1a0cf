package api

import (
	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/handlers"
)

func registerAuthRoutes(api, protected *gin.RouterGroup, h *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/validate/:token", h.Validate)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
	}

	// Me only needs authentication, not a verified account.
	api.GET("/auth/me", requireAuth, h.Me)
}
