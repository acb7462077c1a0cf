package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/database"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tokens"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	"github.com/crewdeck/crewdeck/pkg/mail"
)

var errSMTPDown = errors.New("smtp: dial tcp: connection refused")

type capturingMailer struct {
	sent []mail.Message
	err  error
}

func (m *capturingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, database.AutoMigrateAndSeed(db))
	return db
}

func newTokenService(t *testing.T, db *gorm.DB, mailer mail.Mailer) *tokens.Service {
	t.Helper()

	service, err := tokens.NewService(db, mailer, tokens.Config{BaseURL: "https://crewdeck.test"})
	require.NoError(t, err)
	return service
}

func newJWTService(t *testing.T) *auth.JWTService {
	t.Helper()

	service, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret",
		Issuer: "crewdeck",
	})
	require.NoError(t, err)
	return service
}

func seedUser(t *testing.T, db *gorm.DB, email, password string, verified bool) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username: email,
		Email:    email,
		Password: hashed,
		Verified: verified,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedWorkspace(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Workspace {
	t.Helper()

	workspace := &models.Workspace{
		Name:      name,
		OwnerID:   owner.ID,
		StartDate: time.Now(),
	}
	require.NoError(t, db.Create(workspace).Error)

	role := &models.WorkspaceRole{UserID: owner.ID, Name: models.RoleOwner}
	require.NoError(t, db.Create(role).Error)
	require.NoError(t, db.Create(&models.WorkspaceMember{
		UserID:          owner.ID,
		WorkspaceID:     workspace.ID,
		WorkspaceRoleID: role.ID,
	}).Error)

	return workspace
}
