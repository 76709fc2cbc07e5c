package auth

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

// CredentialPair is the access/refresh token tuple issued by the remote
// auth endpoint. It is opaque except for expiry decoding and is replaced
// wholesale on login or refresh, never patched field by field.
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are present.
func (p CredentialPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Identity describes who the session belongs to. UserID comes from the
// issued grant, Username from the submitted login form.
type Identity struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Valid reports whether the identity satisfies its field invariants.
func (i Identity) Valid() bool {
	return i.UserID >= 1 && i.Username != ""
}

// TokenGrant is the payload the remote auth endpoint returns on a
// successful login or refresh call.
type TokenGrant struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId"`
}

// Pair returns the credential half of the grant.
func (g TokenGrant) Pair() CredentialPair {
	return CredentialPair{AccessToken: g.AccessToken, RefreshToken: g.RefreshToken}
}

// Session is the (credentials, identity) tuple. Invariant: both halves are
// present or both are absent; the kit never exposes one without the other.
type Session struct {
	Credentials *CredentialPair
	Identity    *Identity
}

// NewSession builds an authenticated session from its two halves.
func NewSession(pair CredentialPair, identity Identity) Session {
	return Session{Credentials: &pair, Identity: &identity}
}

// Anonymous returns the absent/absent session.
func Anonymous() Session {
	return Session{}
}

// Authenticated reports whether both halves are present.
func (s Session) Authenticated() bool {
	return s.Credentials != nil && s.Identity != nil
}

// Equal compares two sessions by value.
func (s Session) Equal(other Session) bool {
	if s.Authenticated() != other.Authenticated() {
		return false
	}
	if !s.Authenticated() {
		return true
	}
	return *s.Credentials == *other.Credentials && *s.Identity == *other.Identity
}

func (s Session) String() string {
	if !s.Authenticated() {
		return "session<anonymous>"
	}
	// tokens stay out of logs
	return fmt.Sprintf("session<user=%d username=%s>", s.Identity.UserID, s.Identity.Username)
}

// SignupPayload is the registration request forwarded to the remote auth
// endpoint. The new account is not logged in automatically.
type SignupPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthAPI is the remote authentication endpoint consumed by the flow
// controllers and the outbound request layer.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (TokenGrant, error)
	Signup(ctx context.Context, payload SignupPayload) error
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
