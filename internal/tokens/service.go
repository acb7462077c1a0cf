package tokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	"github.com/crewdeck/crewdeck/pkg/mail"
	"github.com/crewdeck/crewdeck/pkg/metrics"
)

// Default token lifetimes. Verification and password-reset links are short
// lived; invitations stay open for a week.
const (
	DefaultVerificationTTL  = 15 * time.Minute
	DefaultPasswordResetTTL = 15 * time.Minute
	DefaultInvitationTTL    = 7 * 24 * time.Hour

	defaultTokenBytes = 48
)

// Config carries token lifetimes and link rendering settings. It is injected
// so tests can run with short TTLs.
type Config struct {
	BaseURL          string
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
	InvitationTTL    time.Duration
	TokenLength      int
}

func (c Config) withDefaults() Config {
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = DefaultVerificationTTL
	}
	if c.PasswordResetTTL <= 0 {
		c.PasswordResetTTL = DefaultPasswordResetTTL
	}
	if c.InvitationTTL <= 0 {
		c.InvitationTTL = DefaultInvitationTTL
	}
	if c.TokenLength <= 0 {
		c.TokenLength = defaultTokenBytes
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Option customises the Service.
type Option func(*Service)

// WithClock injects a custom time source, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Service issues, dispatches, and redeems verification tokens for all three
// purposes.
type Service struct {
	db     *gorm.DB
	mailer mail.Mailer
	cfg    Config
	now    func() time.Time
}

// NewService constructs a token service with the provided dependencies. The
// mailer may be nil; Send then only persists tokens.
func NewService(db *gorm.DB, mailer mail.Mailer, cfg Config, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}

	service := &Service{
		db:     db,
		mailer: mailer,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// TTL returns the configured lifetime for the given purpose.
func (s *Service) TTL(purpose Purpose) time.Duration {
	switch purpose.(type) {
	case AccountVerification:
		return s.cfg.VerificationTTL
	case PasswordReset:
		return s.cfg.PasswordResetTTL
	case WorkspaceInvitation:
		return s.cfg.InvitationTTL
	}
	return 0
}

// Issue mints a token bound to email for the given purpose and persists it.
// Unless allowResend is set, an outstanding token for the same identity and
// purpose fails the call with ErrTokenAlreadyExists. The outstanding check
// and the insert share one transaction, serialized per identity (see
// lockIssueIdentity) so concurrent issuance cannot slip two tokens past the
// check. The raw token is returned exactly once; only its hash is stored.
func (s *Service) Issue(ctx context.Context, email string, purpose Purpose, allowResend bool) (string, error) {
	email = normaliseEmail(email)
	if email == "" {
		return "", errors.New("token service: email is required")
	}

	raw, err := crypto.GenerateToken(s.cfg.TokenLength)
	if err != nil {
		return "", serverError(KindTokenGeneration, err)
	}

	now := s.now()
	expiresAt := now.Add(s.TTL(purpose))
	if !expiresAt.After(now) {
		return "", serverError(KindSettingExpiration, errors.New("expiry did not advance past issuance time"))
	}

	hash := tokenHash(raw)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockIssueIdentity(tx, email, purpose); err != nil {
			return serverError(KindDatabase, err)
		}

		if !allowResend {
			outstanding, err := s.hasOutstanding(tx, email, purpose, now)
			if err != nil {
				return serverError(KindDatabase, err)
			}
			if outstanding {
				return ErrTokenAlreadyExists
			}
		}

		if err := insertToken(tx, email, hash, expiresAt, purpose); err != nil {
			return serverError(KindTokenInsertion, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.TokensIssued.WithLabelValues(purpose.String()).Inc()
	return raw, nil
}

// Confirm validates and redeems a token for the caller-supplied purpose.
// The redemption side effect depends on the purpose: account verification
// marks the token confirmed and flips the owning account's verified flag in
// one transaction; password reset deletes the row; workspace invitation
// validation leaves consumption to RedeemInvitation so the membership
// writes can join the same transaction.
func (s *Service) Confirm(ctx context.Context, token string, purpose Purpose) error {
	var err error
	switch p := purpose.(type) {
	case AccountVerification:
		err = s.confirmAccountVerification(ctx, token)
	case PasswordReset:
		err = s.confirmPasswordReset(ctx, token, p.Email)
	case WorkspaceInvitation:
		_, err = s.validateInvitation(s.db.WithContext(ctx), token, p.WorkspaceID)
	default:
		err = ErrNotFound
	}

	metrics.TokensRedeemed.WithLabelValues(purpose.String(), redeemResult(err)).Inc()
	return err
}

func (s *Service) confirmAccountVerification(ctx context.Context, token string) error {
	row, err := findConfirmation(s.db.WithContext(ctx), token)
	if err != nil {
		return err
	}

	now := s.now()
	if now.After(row.ExpiresAt) {
		return ErrExpired
	}
	if row.ConfirmedAt != nil {
		return ErrAccountAlreadyVerified
	}

	// Token confirmation and the account flag update are one logical unit.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.markConfirmed(tx, row, now)
	})
}

// markConfirmed consumes a confirmation row read earlier and flips the
// owning account's verified flag. The confirmed_at guard re-checks the row
// state at write time, so a caller holding a stale read loses to whoever
// confirmed first.
func (s *Service) markConfirmed(tx *gorm.DB, row *models.ConfirmationToken, now time.Time) error {
	update := tx.Model(&models.ConfirmationToken{}).
		Where("id = ? AND confirmed_at IS NULL", row.ID).
		Update("confirmed_at", now)
	if update.Error != nil {
		return serverError(KindDatabase, update.Error)
	}
	if update.RowsAffected == 0 {
		return ErrAccountAlreadyVerified
	}

	result := tx.Model(&models.User{}).
		Where("email = ?", row.Email).
		Update("verified", true)
	if result.Error != nil {
		return serverError(KindDatabase, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) confirmPasswordReset(ctx context.Context, token, email string) error {
	row, err := findPasswordReset(s.db.WithContext(ctx), token)
	if err != nil {
		return err
	}

	// Identity mismatch is indistinguishable from an unknown token.
	if row.Email != normaliseEmail(email) {
		return ErrNotFound
	}

	if s.now().After(row.ExpiresAt) {
		return ErrExpired
	}

	result := s.db.WithContext(ctx).
		Where("id = ?", row.ID).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return serverError(KindDatabase, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// validateInvitation checks an invitation token without consuming it:
// lookup, workspace scope, expiry, that the invited email has an account,
// and that the account is not already a member.
func (s *Service) validateInvitation(db *gorm.DB, token, workspaceID string) (*models.WorkspaceInvitation, error) {
	row, err := findInvitation(db, token)
	if err != nil {
		return nil, err
	}

	if workspaceID != "" && row.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}

	if s.now().After(row.ExpiresAt) {
		return nil, ErrExpired
	}

	var user models.User
	if err := db.Where("email = ?", row.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInvited
		}
		return nil, serverError(KindDatabase, err)
	}

	var memberships int64
	if err := db.Model(&models.WorkspaceMember{}).
		Where("user_id = ? AND workspace_id = ?", user.ID, row.WorkspaceID).
		Count(&memberships).Error; err != nil {
		return nil, serverError(KindDatabase, err)
	}
	if memberships > 0 {
		return nil, ErrAlreadyInWorkspace
	}

	return row, nil
}

// RedeemInvitation validates and consumes an invitation token inside the
// caller's transaction. Deleting the row here means a rolled-back
// acceptance leaves the token valid for retry, while a committed one can
// never be replayed.
func (s *Service) RedeemInvitation(tx *gorm.DB, token string) (*models.WorkspaceInvitation, error) {
	row, err := s.validateInvitation(tx, token, "")
	if err != nil {
		metrics.TokensRedeemed.WithLabelValues(WorkspaceInvitation{}.String(), redeemResult(err)).Inc()
		return nil, err
	}

	result := tx.Where("id = ?", row.ID).Delete(&models.WorkspaceInvitation{})
	if result.Error != nil {
		return nil, serverError(KindInvitation, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	metrics.TokensRedeemed.WithLabelValues(WorkspaceInvitation{}.String(), "success").Inc()
	return row, nil
}

// advisoryLockSQL takes a transaction-scoped postgres advisory lock; it is
// released automatically at commit or rollback.
const advisoryLockSQL = "SELECT pg_advisory_xact_lock(hashtext(?))"

// lockIssueIdentity serializes concurrent Issue transactions for one
// identity and purpose. Postgres runs read committed, so without a lock two
// concurrent issuers would each count zero outstanding rows and both
// insert; a per-identity advisory lock makes the loser wait until the
// winner commits, after which the outstanding check sees the new row. On
// mysql the locking read in outstandingScope takes InnoDB gap locks over
// the same key range, and sqlite serializes writers on its own.
func lockIssueIdentity(tx *gorm.DB, email string, purpose Purpose) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(advisoryLockSQL, issueLockKey(email, purpose)).Error
}

func issueLockKey(email string, purpose Purpose) string {
	key := purpose.String() + ":" + email
	if p, ok := purpose.(WorkspaceInvitation); ok {
		key += ":" + p.WorkspaceID
	}
	return key
}

// outstandingScope narrows to live tokens for the identity and purpose. On
// mysql the scope reads FOR UPDATE; postgres cannot lock an aggregate and
// relies on lockIssueIdentity instead.
func outstandingScope(tx *gorm.DB, email string, purpose Purpose, now time.Time) *gorm.DB {
	query := tx.Session(&gorm.Session{})
	if tx.Dialector.Name() == "mysql" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	switch p := purpose.(type) {
	case AccountVerification:
		return query.Model(&models.ConfirmationToken{}).
			Where("email = ? AND confirmed_at IS NULL AND expires_at > ?", email, now)
	case PasswordReset:
		return query.Model(&models.PasswordResetToken{}).
			Where("email = ? AND expires_at > ?", email, now)
	case WorkspaceInvitation:
		return query.Model(&models.WorkspaceInvitation{}).
			Where("email = ? AND workspace_id = ? AND expires_at > ?", email, p.WorkspaceID, now)
	}
	return nil
}

func (s *Service) hasOutstanding(tx *gorm.DB, email string, purpose Purpose, now time.Time) (bool, error) {
	query := outstandingScope(tx, email, purpose, now)
	if query == nil {
		return false, nil
	}

	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func insertToken(tx *gorm.DB, email, hash string, expiresAt time.Time, purpose Purpose) error {
	switch p := purpose.(type) {
	case AccountVerification:
		return tx.Create(&models.ConfirmationToken{
			Email:     email,
			TokenHash: hash,
			ExpiresAt: expiresAt,
		}).Error
	case PasswordReset:
		return tx.Create(&models.PasswordResetToken{
			Email:     email,
			TokenHash: hash,
			ExpiresAt: expiresAt,
		}).Error
	case WorkspaceInvitation:
		return tx.Create(&models.WorkspaceInvitation{
			Email:       email,
			TokenHash:   hash,
			WorkspaceID: p.WorkspaceID,
			ExpiresAt:   expiresAt,
		}).Error
	}
	return errors.New("token service: unknown purpose")
}

func findConfirmation(db *gorm.DB, token string) (*models.ConfirmationToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}

	var row models.ConfirmationToken
	if err := db.Where("token_hash = ?", tokenHash(token)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, serverError(KindDatabase, err)
	}
	return &row, nil
}

func findPasswordReset(db *gorm.DB, token string) (*models.PasswordResetToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}

	var row models.PasswordResetToken
	if err := db.Where("token_hash = ?", tokenHash(token)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, serverError(KindDatabase, err)
	}
	return &row, nil
}

func findInvitation(db *gorm.DB, token string) (*models.WorkspaceInvitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}

	var row models.WorkspaceInvitation
	if err := db.Where("token_hash = ?", tokenHash(token)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, serverError(KindDatabase, err)
	}
	return &row, nil
}

func redeemResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotInvited):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAccountAlreadyVerified), errors.Is(err, ErrAlreadyInWorkspace):
		return "conflict"
	default:
		return "error"
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokenHash(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
