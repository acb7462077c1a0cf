package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/app"
	iauth "github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/database"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tokens"
)

func newTestRouter(t *testing.T) (*gin.Engine, *tokens.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrateAndSeed(db))

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "crewdeck",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	tokenService, err := tokens.NewService(db, nil, tokens.Config{})
	require.NoError(t, err)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	router, err := NewRouter(Deps{
		DB:     db,
		JWT:    jwtSvc,
		Tokens: tokenService,
		Config: cfg,
	})
	require.NoError(t, err)

	return router, tokenService
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/workspaces", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterFullAccountAndWorkspaceFlow(t *testing.T) {
	router, tokenService := newTestRouter(t)
	ctx := context.Background()

	// Register.
	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "flow-user",
		"email":    "flow@example.com",
		"password": "long-enough-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Unverified accounts cannot reach verified-only routes yet.
	login := func() (string, int) {
		w := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "flow@example.com",
			"password": "long-enough-pass",
		})
		if w.Code != http.StatusOK {
			return "", w.Code
		}
		var body struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Data.AccessToken, w.Code
	}

	accessToken, code := login()
	require.Equal(t, http.StatusOK, code)

	w = doJSON(t, router, http.MethodPost, "/api/workspaces", accessToken, gin.H{
		"name":       "Flow Site",
		"start_date": time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Verify via the emailed token, then log in again for verified claims.
	verification, err := tokenService.Issue(ctx, "flow@example.com", tokens.AccountVerification{}, true)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodGet, "/api/auth/validate/"+verification, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	accessToken, code = login()
	require.Equal(t, http.StatusOK, code)

	// Create a workspace.
	w = doJSON(t, router, http.MethodPost, "/api/workspaces", accessToken, gin.H{
		"name":       "Flow Site",
		"start_date": time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data models.Workspace `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	workspaceID := created.Data.ID
	require.NotEmpty(t, workspaceID)

	// Invite a second registered user.
	w = doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "flow-invitee",
		"email":    "flow-invitee@example.com",
		"password": "long-enough-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations", workspaceID), accessToken, gin.H{
		"email": "flow-invitee@example.com",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	// Accept via the invitation token.
	invitation, err := tokenService.Issue(ctx, "flow-invitee@example.com", tokens.WorkspaceInvitation{WorkspaceID: workspaceID}, true)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodPost, "/api/workspaces/invitations/accept/"+invitation, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Replaying the consumed token fails.
	w = doJSON(t, router, http.MethodPost, "/api/workspaces/invitations/accept/"+invitation, "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// The owner now sees two members.
	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/members", workspaceID), accessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var members struct {
		Data []models.WorkspaceMember `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members.Data, 2)
}
