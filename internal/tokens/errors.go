package tokens

import (
	"errors"
	"fmt"
)

// Client errors: the request was understood and rejected. Callers map these
// onto 4xx responses and must not retry blindly.
var (
	// ErrNotFound indicates no token matches the supplied string (or the
	// caller-supplied identity does not match the token's owner; the two
	// cases are deliberately indistinguishable).
	ErrNotFound = errors.New("tokens: not found")
	// ErrExpired indicates the token exists but is past its expiry.
	ErrExpired = errors.New("tokens: expired")
	// ErrTokenAlreadyExists signals an outstanding token for the same
	// identity and purpose when resend was not requested.
	ErrTokenAlreadyExists = errors.New("tokens: outstanding token already exists")
	// ErrAccountAlreadyVerified signals a live verification token whose
	// account was already confirmed.
	ErrAccountAlreadyVerified = errors.New("tokens: account already verified")
	// ErrAlreadyInWorkspace signals the invited user already holds a
	// membership in the target workspace.
	ErrAlreadyInWorkspace = errors.New("tokens: user already in workspace")
	// ErrNotInvited signals a valid invitation whose email resolves to no
	// account.
	ErrNotInvited = errors.New("tokens: invited user has no account")
)

// ServerErrorKind categorises infrastructure failures surfaced by the token
// subsystem.
type ServerErrorKind string

const (
	KindDatabase          ServerErrorKind = "database"
	KindSettingExpiration ServerErrorKind = "setting_expiration_date"
	KindTokenInsertion    ServerErrorKind = "token_insertion"
	KindTokenGeneration   ServerErrorKind = "token_generation"
	KindEmailSending      ServerErrorKind = "email_sending"
	KindInvitation        ServerErrorKind = "workspace_invitation"
	KindOther             ServerErrorKind = "other"
)

// ServerError wraps an infrastructure failure with its category. Raw driver
// errors never cross the package boundary unwrapped.
type ServerError struct {
	Kind ServerErrorKind
	Err  error
}

func (e *ServerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("tokens: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("tokens: %s", e.Kind)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *ServerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func serverError(kind ServerErrorKind, err error) *ServerError {
	return &ServerError{Kind: kind, Err: err}
}

// IsClientError reports whether err belongs to the rejected-request family.
func IsClientError(err error) bool {
	for _, candidate := range []error{
		ErrNotFound,
		ErrExpired,
		ErrTokenAlreadyExists,
		ErrAccountAlreadyVerified,
		ErrAlreadyInWorkspace,
		ErrNotInvited,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
