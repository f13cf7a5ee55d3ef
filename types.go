package passwordless

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds the attributes of the authenticated identity as known to
// the client.
type Session interface {
	GetIdentityID() string
	GetEmail() string
	GetToken() string
	GetRole() UserRole
}

// Config holds passwordless options
type Config interface {
	GetBaseURL() string
	GetRequestTimeout() int
	IsProduction() bool
	GetLoginRoute() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// CredentialStore persists the session artifacts across process restarts.
// The three fields travel together: a partial record is inconsistent and
// implementations must clear it and report the credentials as absent.
type CredentialStore interface {
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	Clear(ctx context.Context) error
}

// IssueCodeResponse is the code-issuance result. DevCode is only populated
// by non-production backends.
type IssueCodeResponse struct {
	DevCode string `json:"dev_code,omitempty"`
}

// VerifyCodeResponse carries the identity established by a successful
// verification. Both fields are required; a partial response is a failure.
type VerifyCodeResponse struct {
	IdentityID string `json:"identity_id"`
	Token      string `json:"token"`
}

// IdentityClient encapsulates the network contracts with the
// authentication backend and the user directory. Operations surface typed
// failures and never retry internally.
type IdentityClient interface {
	IssueCode(ctx context.Context, email string) (*IssueCodeResponse, error)
	VerifyCode(ctx context.Context, email, code string) (*VerifyCodeResponse, error)
	SyncIdentity(ctx context.Context, msg SyncIdentityMessage) error
	UpdateProfile(ctx context.Context, identityID, firstName, lastName string) error
}

// TokenValidator is an optional interface an IdentityClient may implement
// when the backend supports live validation of a restored token. The
// manager reconciles restored sessions against it asynchronously.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) error
}

// SessionSource exposes the current session and its loading state to
// read-only consumers such as the route guard.
type SessionSource interface {
	Current() *SessionObject
	IsLoading() bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PWDLESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PWDLESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PWDLESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PWDLESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
