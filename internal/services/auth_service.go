package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/database"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tokens"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/logger"
	"github.com/crewdeck/crewdeck/pkg/metrics"
)

// RegisterInput describes the fields accepted when creating an account.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginInput carries credential fields for authentication.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordInput carries a redeemed reset token and the replacement password.
type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

// LoginResult bundles the issued access token with the authenticated account.
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

// AuthService handles registration, credential checks, and the account
// verification and password reset flows.
type AuthService struct {
	db     *gorm.DB
	tokens *tokens.Service
	jwt    *auth.JWTService
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(db *gorm.DB, tokenService *tokens.Service, jwtService *auth.JWTService) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokenService == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{db: db, tokens: tokenService, jwt: jwtService}, nil
}

// Register provisions an account and dispatches a verification email. A
// failed email delivery does not roll back the account; the verification
// token stays valid and the client may request a resend.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := normaliseEmail(input.Email)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.New("USER_EXISTS", "An account with this username or email already exists", http.StatusConflict)
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	if _, err := s.tokens.Send(ctx, email, username, tokens.AccountVerification{}, "", false); err != nil {
		// The account exists and the token is persisted; delivery can be
		// retried via ResendVerification.
		logger.WithModule("auth").Warn("verification email failed",
			zap.String("email", email), zap.Error(err))
	}

	return user, nil
}

// Login verifies credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	email := normaliseEmail(input.Email)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID:   user.ID,
		Email:    user.Email,
		Verified: user.Verified,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue access token: %w", err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.WithModule("auth").Warn("record last login failed", zap.Error(err))
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &LoginResult{AccessToken: accessToken, User: &user}, nil
}

// ValidateAccount redeems a verification token and activates the owning account.
func (s *AuthService) ValidateAccount(ctx context.Context, token string) error {
	ctx = ensureContext(ctx)

	if err := s.tokens.Confirm(ctx, token, tokens.AccountVerification{}); err != nil {
		return translateTokenError(err)
	}
	return nil
}

// ResendVerification issues a fresh verification token regardless of any
// outstanding one and emails it. Unknown or already verified addresses
// return nil so the endpoint cannot be used to probe accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("auth service: find user: %w", err)
	}
	if user.Verified {
		return nil
	}

	if _, err := s.tokens.Send(ctx, email, user.Username, tokens.AccountVerification{}, "", true); err != nil {
		return translateTokenError(err)
	}
	return nil
}

// RequestPasswordReset issues and emails a password reset token. As with
// resends, unknown addresses return nil to avoid account enumeration.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("auth service: find user: %w", err)
	}

	if _, err := s.tokens.Send(ctx, email, user.Username, tokens.PasswordReset{Email: email}, "", true); err != nil {
		return translateTokenError(err)
	}
	return nil
}

// ResetPassword redeems a reset token and replaces the account password.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	ctx = ensureContext(ctx)
	email := normaliseEmail(input.Email)

	if strings.TrimSpace(input.NewPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	if err := s.tokens.Confirm(ctx, input.Token, tokens.PasswordReset{Email: email}); err != nil {
		return translateTokenError(err)
	}

	hashed, err := crypto.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Update("password", hashed)
	if result.Error != nil {
		return fmt.Errorf("auth service: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTokenNotFound
	}
	return nil
}
