package tokens

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/crewdeck/crewdeck/pkg/mail"
)

const emailStyle = `
  body { font-family: 'Segoe UI', Arial, sans-serif; background: #f4f5f7; margin: 0; padding: 0; }
  .container { max-width: 560px; margin: 24px auto; background: #ffffff; border-radius: 8px; padding: 32px; }
  .brand { font-size: 20px; font-weight: 700; color: #1f2a44; margin-bottom: 16px; }
  .button { display: inline-block; padding: 12px 24px; background: #2f6fed; color: #ffffff !important; text-decoration: none; border-radius: 6px; font-weight: 600; }
  .muted { color: #6b7280; font-size: 13px; margin-top: 24px; }
`

// Send mints a token for the given purpose (unless the caller already holds
// one and passes it in) and emails the corresponding link to the recipient.
// A mail transport failure does not invalidate the freshly issued token, so
// the token is returned alongside the error and the caller may retry the
// notification without reissuing.
func (s *Service) Send(ctx context.Context, email, displayName string, purpose Purpose, token string, allowResend bool) (string, error) {
	if token == "" {
		minted, err := s.Issue(ctx, email, purpose, allowResend)
		if err != nil {
			return "", err
		}
		token = minted
	}

	if s.mailer == nil {
		return token, nil
	}

	subject, body := s.composeEmail(displayName, purpose, token)
	if err := s.mailer.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: subject,
		Body:    body,
	}); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return token, nil
		}
		return token, serverError(KindEmailSending, err)
	}

	return token, nil
}

func (s *Service) composeEmail(displayName string, purpose Purpose, token string) (string, string) {
	name := html.EscapeString(displayName)
	if name == "" {
		name = "there"
	}

	switch purpose.(type) {
	case AccountVerification:
		link := s.link("auth/validate", token)
		return "Verify your Crewdeck account", emailBody(name,
			"Welcome to Crewdeck! Confirm your email address to activate your account.",
			link, "Verify account",
			"This link expires in "+formatTTL(s.cfg.VerificationTTL)+". If you did not sign up, you can ignore this email.")
	case PasswordReset:
		link := s.link("auth/reset-password", token)
		return "Reset your Crewdeck password", emailBody(name,
			"We received a request to reset your password. Use the button below to choose a new one.",
			link, "Reset password",
			"This link expires in "+formatTTL(s.cfg.PasswordResetTTL)+". If you did not request a reset, your password is unchanged.")
	case WorkspaceInvitation:
		link := s.link("workspaces/invitations/accept", token)
		return "You have been invited to a Crewdeck workspace", emailBody(name,
			"You have been invited to join a workspace on Crewdeck. Accept the invitation to start collaborating.",
			link, "Accept invitation",
			"This invitation expires in "+formatTTL(s.cfg.InvitationTTL)+".")
	}
	return "", ""
}

// link renders the redemption URL. With no base URL configured the bare
// token is used so tests and CLI flows can still read it.
func (s *Service) link(path, token string) string {
	if s.cfg.BaseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/%s/%s", s.cfg.BaseURL, path, token)
}

func emailBody(name, intro, link, action, footer string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><style>%s</style></head>
<body>
  <div class="container">
    <div class="brand">Crewdeck</div>
    <p>Hi %s,</p>
    <p>%s</p>
    <p><a class="button" href="%s">%s</a></p>
    <p class="muted">%s<br>If the button does not work, copy this link into your browser:<br>%s</p>
  </div>
</body>
</html>`, emailStyle, name, intro, html.EscapeString(link), action, footer, html.EscapeString(link))
}

func formatTTL(d time.Duration) string {
	hours := d.Hours()
	if hours >= 24 {
		days := int(hours / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if hours >= 1 {
		h := int(hours)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	minutes := int(hours * 60)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
