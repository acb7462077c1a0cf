package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tokens"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

func newAuthService(t *testing.T) (*AuthService, *gorm.DB, *capturingMailer, *tokens.Service) {
	t.Helper()

	db := openTestDB(t)
	mailer := &capturingMailer{}
	tokenService := newTokenService(t, db, mailer)

	service, err := NewAuthService(db, tokenService, newJWTService(t))
	require.NoError(t, err)

	return service, db, mailer, tokenService
}

func TestRegisterCreatesUnverifiedAccountAndEmailsToken(t *testing.T) {
	service, db, mailer, _ := newAuthService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, RegisterInput{
		Username: "ada",
		Email:    "Ada@Example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.False(t, user.Verified)
	require.NotEqual(t, "correct-horse", user.Password)

	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"ada@example.com"}, mailer.sent[0].To)

	var count int64
	require.NoError(t, db.Model(&models.ConfirmationToken{}).
		Where("email = ?", "ada@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{Username: "dup-a", Email: "dup@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, err = service.Register(ctx, RegisterInput{Username: "dup-b", Email: "dup@example.com", Password: "password-2"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "USER_EXISTS", appErr.Code)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	db := openTestDB(t)
	mailer := &capturingMailer{err: errSMTPDown}
	tokenService := newTokenService(t, db, mailer)
	service, err := NewAuthService(db, tokenService, newJWTService(t))
	require.NoError(t, err)

	ctx := context.Background()
	user, err := service.Register(ctx, RegisterInput{Username: "offline", Email: "offline@example.com", Password: "password-1"})
	require.NoError(t, err)
	require.NotNil(t, user)

	// The token persisted even though the email never left.
	var count int64
	require.NoError(t, db.Model(&models.ConfirmationToken{}).
		Where("email = ?", "offline@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestLoginSuccessAndFailure(t *testing.T) {
	service, db, _, _ := newAuthService(t)
	ctx := context.Background()
	seedUser(t, db, "login@example.com", "hunter2-hunter2", true)

	result, err := service.Login(ctx, LoginInput{Email: "login@example.com", Password: "hunter2-hunter2"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotNil(t, result.User.LastLoginAt)

	_, err = service.Login(ctx, LoginInput{Email: "login@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	service, db, _, _ := newAuthService(t)
	ctx := context.Background()

	user := seedUser(t, db, "inactive@example.com", "password-123", true)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, err := service.Login(ctx, LoginInput{Email: "inactive@example.com", Password: "password-123"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestValidateAccountFlow(t *testing.T) {
	service, db, _, tokenService := newAuthService(t)
	ctx := context.Background()
	user := seedUser(t, db, "activate@example.com", "password-123", false)

	token, err := tokenService.Issue(ctx, "activate@example.com", tokens.AccountVerification{}, false)
	require.NoError(t, err)

	require.NoError(t, service.ValidateAccount(ctx, token))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.True(t, reloaded.Verified)

	err = service.ValidateAccount(ctx, token)
	require.ErrorIs(t, err, apperrors.ErrAccountVerified)

	err = service.ValidateAccount(ctx, "bogus")
	require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
}

func TestResendVerificationDoesNotLeakAccounts(t *testing.T) {
	service, db, mailer, _ := newAuthService(t)
	ctx := context.Background()

	// Unknown address: quiet no-op.
	require.NoError(t, service.ResendVerification(ctx, "ghost@example.com"))
	require.Empty(t, mailer.sent)

	// Verified address: also a quiet no-op.
	seedUser(t, db, "done@example.com", "password-123", true)
	require.NoError(t, service.ResendVerification(ctx, "done@example.com"))
	require.Empty(t, mailer.sent)

	// Unverified address gets a fresh token even with one outstanding.
	seedUser(t, db, "pending@example.com", "password-123", false)
	require.NoError(t, service.ResendVerification(ctx, "pending@example.com"))
	require.NoError(t, service.ResendVerification(ctx, "pending@example.com"))
	require.Len(t, mailer.sent, 2)
}

func TestPasswordResetFlow(t *testing.T) {
	service, db, mailer, tokenService := newAuthService(t)
	ctx := context.Background()
	seedUser(t, db, "forgot@example.com", "old-password-1", true)

	require.NoError(t, service.RequestPasswordReset(ctx, "forgot@example.com"))
	require.Len(t, mailer.sent, 1)

	token, err := tokenService.Issue(ctx, "forgot@example.com", tokens.PasswordReset{Email: "forgot@example.com"}, true)
	require.NoError(t, err)

	require.NoError(t, service.ResetPassword(ctx, ResetPasswordInput{
		Email:       "forgot@example.com",
		Token:       token,
		NewPassword: "new-password-9",
	}))

	_, err = service.Login(ctx, LoginInput{Email: "forgot@example.com", Password: "old-password-1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	result, err := service.Login(ctx, LoginInput{Email: "forgot@example.com", Password: "new-password-9"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)

	// The token was consumed by the successful reset.
	err = service.ResetPassword(ctx, ResetPasswordInput{
		Email:       "forgot@example.com",
		Token:       token,
		NewPassword: "another-password",
	})
	require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
}

func TestResetPasswordWrongIdentity(t *testing.T) {
	service, db, _, tokenService := newAuthService(t)
	ctx := context.Background()
	seedUser(t, db, "target@example.com", "password-123", true)

	token, err := tokenService.Issue(ctx, "target@example.com", tokens.PasswordReset{Email: "target@example.com"}, false)
	require.NoError(t, err)

	err = service.ResetPassword(ctx, ResetPasswordInput{
		Email:       "imposter@example.com",
		Token:       token,
		NewPassword: "stolen-password",
	})
	require.ErrorIs(t, err, apperrors.ErrTokenNotFound)

	// The legitimate owner can still redeem it.
	require.NoError(t, service.ResetPassword(ctx, ResetPasswordInput{
		Email:       "target@example.com",
		Token:       token,
		NewPassword: "fresh-password-1",
	}))
}
