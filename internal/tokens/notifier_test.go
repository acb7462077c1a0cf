package tokens

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/database"
	"github.com/crewdeck/crewdeck/pkg/mail"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newNotifierService(t *testing.T, mailer mail.Mailer) *Service {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, database.AutoMigrateAndSeed(db))

	service, err := NewService(db, mailer, Config{BaseURL: "https://app.example.com"})
	require.NoError(t, err)
	return service
}

func TestSendVerificationEmail(t *testing.T) {
	mailer := &fakeMailer{}
	service := newNotifierService(t, mailer)

	token, err := service.Send(context.Background(), "welcome@example.com", "Ada", AccountVerification{}, "", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Equal(t, []string{"welcome@example.com"}, msg.To)
	require.Contains(t, msg.Subject, "Verify")
	require.Contains(t, msg.Body, "Hi Ada,")
	require.Contains(t, msg.Body, "https://app.example.com/auth/validate/"+token)
}

func TestSendPerPurposeLinks(t *testing.T) {
	mailer := &fakeMailer{}
	service := newNotifierService(t, mailer)
	ctx := context.Background()

	cases := []struct {
		purpose Purpose
		email   string
		path    string
	}{
		{AccountVerification{}, "link-a@example.com", "/auth/validate/"},
		{PasswordReset{Email: "link-b@example.com"}, "link-b@example.com", "/auth/reset-password/"},
		{WorkspaceInvitation{WorkspaceID: "ws-1"}, "link-c@example.com", "/workspaces/invitations/accept/"},
	}

	for _, tc := range cases {
		token, err := service.Send(ctx, tc.email, "", tc.purpose, "", false)
		require.NoError(t, err)

		last := mailer.sent[len(mailer.sent)-1]
		require.Contains(t, last.Body, tc.path+token, "purpose %s", tc.purpose)
		require.Contains(t, last.Body, "Hi there,")
	}
}

func TestSendMailFailureKeepsTokenValid(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	service := newNotifierService(t, mailer)
	ctx := context.Background()

	token, err := service.Send(ctx, "flaky@example.com", "Ada", AccountVerification{}, "", false)
	require.NotEmpty(t, token)

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, KindEmailSending, srvErr.Kind)

	// The token survived the delivery failure, so the caller can retry the
	// notification without minting a second token.
	retried, err := service.Send(ctx, "flaky@example.com", "Ada", AccountVerification{}, token, false)
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, token, retried)
}

func TestSendWithDisabledSMTP(t *testing.T) {
	mailer := &fakeMailer{err: mail.ErrSMTPDisabled}
	service := newNotifierService(t, mailer)

	token, err := service.Send(context.Background(), "quiet@example.com", "", AccountVerification{}, "", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestSendWithoutBaseURLUsesBareToken(t *testing.T) {
	mailer := &fakeMailer{}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrateAndSeed(db))

	service, err := NewService(db, mailer, Config{})
	require.NoError(t, err)

	token, err := service.Send(context.Background(), "bare@example.com", "", AccountVerification{}, "", false)
	require.NoError(t, err)

	body := mailer.sent[0].Body
	require.Contains(t, body, `href="`+token+`"`)
	require.False(t, strings.Contains(body, "https://"), "expected no absolute link")
}

func TestFormatTTL(t *testing.T) {
	require.Equal(t, "15 minutes", formatTTL(DefaultVerificationTTL))
	require.Equal(t, "7 days", formatTTL(DefaultInvitationTTL))
	require.Equal(t, "1 hour", formatTTL(time.Hour))
}
