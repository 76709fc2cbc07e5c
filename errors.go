package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrTokenExpired marks a token whose expiry lies in the past.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks a token the codec could not decode. Callers treat
// it exactly like an expired token (fail-closed).
var ErrTokenMalformed = goerrors.New("authentication token malformed", goerrors.CategoryBadInput).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is the only error the login flow surfaces for a
// remote rejection; it never distinguishes unknown user from bad password.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrSignupFailed is the generic signup rejection.
var ErrSignupFailed = goerrors.New("signup failed", goerrors.CategoryAuth).
	WithTextCode("SIGNUP_FAILED").
	WithCode(goerrors.CodeBadRequest)

// ErrRefreshRejected means the remote endpoint refused the refresh token.
// The session is irrecoverable; there is no silent re-login.
var ErrRefreshRejected = goerrors.New("refresh token rejected", goerrors.CategoryAuth).
	WithTextCode("REFRESH_REJECTED").
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned by operations that require a session.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode("NOT_AUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInconsistent marks a stored record holding a credential pair
// without an identity or vice versa. Repair is clearing the whole session,
// never guessing the missing half.
var ErrSessionInconsistent = goerrors.New("session credentials and identity out of step", goerrors.CategoryConflict).
	WithTextCode("SESSION_INCONSISTENT").
	WithCode(goerrors.CodeConflict)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}
