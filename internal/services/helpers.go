package services

import (
	"context"
	"errors"
	"strings"

	"github.com/crewdeck/crewdeck/internal/tokens"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translateTokenError maps token subsystem errors onto the API error set.
// Server-side failures surface as opaque 500s with the cause attached
// internally for logging.
func translateTokenError(err error) *apperrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tokens.ErrNotFound), errors.Is(err, tokens.ErrNotInvited):
		return apperrors.ErrTokenNotFound
	case errors.Is(err, tokens.ErrExpired):
		return apperrors.ErrTokenExpired
	case errors.Is(err, tokens.ErrTokenAlreadyExists):
		return apperrors.ErrTokenExists
	case errors.Is(err, tokens.ErrAccountAlreadyVerified):
		return apperrors.ErrAccountVerified
	case errors.Is(err, tokens.ErrAlreadyInWorkspace):
		return apperrors.ErrAlreadyMember
	default:
		return apperrors.ErrInternalServer.WithInternal(err)
	}
}
