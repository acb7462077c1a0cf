package tokens

// Purpose identifies the action a verification token authorises. The set is
// closed: each variant maps to its own table and carries only the data that
// purpose needs. Redemption must receive the purpose from the caller; it is
// never inferred from the token string, which keeps the lookup tables
// isolated from each other.
type Purpose interface {
	String() string
	purpose()
}

// AccountVerification tokens flip the owning account's verified flag. The
// token row is kept (confirmed_at set) after redemption.
type AccountVerification struct{}

func (AccountVerification) String() string { return "account_verification" }
func (AccountVerification) purpose()       {}

// PasswordReset tokens certify that the bound email may change its
// password. Email is the identity the caller presents at redemption; it
// must match the token's owner or the token is treated as unknown.
type PasswordReset struct {
	Email string
}

func (PasswordReset) String() string { return "password_reset" }
func (PasswordReset) purpose()       {}

// WorkspaceInvitation tokens admit the owning email into a workspace.
// WorkspaceID scopes issuance; at redemption a non-empty WorkspaceID must
// match the stored row.
type WorkspaceInvitation struct {
	WorkspaceID string
}

func (WorkspaceInvitation) String() string { return "workspace_invitation" }
func (WorkspaceInvitation) purpose()       {}
