package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/app"
	iauth "github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/filestore"
	"github.com/crewdeck/crewdeck/internal/handlers"
	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/internal/tokens"
)

// Deps bundles the shared dependencies the router wires into handlers.
type Deps struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Tokens *tokens.Service
	Files  filestore.Store
	Config *app.Config
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authService, err := services.NewAuthService(deps.DB, deps.Tokens, deps.JWT)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}
	workspaceService, err := services.NewWorkspaceService(deps.DB, deps.Tokens)
	if err != nil {
		return nil, err
	}
	taskService, err := services.NewTaskService(deps.DB, deps.Files)
	if err != nil {
		return nil, err
	}
	problemService, err := services.NewProblemService(deps.DB, deps.Files)
	if err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(deps.JWT)
	requireVerified := middleware.RequireVerified()

	api := r.Group("/api")
	protected := api.Group("")
	protected.Use(requireAuth, requireVerified)

	registerAuthRoutes(api, protected, handlers.NewAuthHandler(authService, userService), requireAuth)
	registerWorkspaceRoutes(api, protected, handlers.NewWorkspaceHandler(workspaceService))
	registerTaskRoutes(protected, handlers.NewTaskHandler(taskService))
	registerProblemRoutes(protected, handlers.NewProblemHandler(problemService))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
