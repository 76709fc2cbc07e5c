package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Claims is the advisory view of a bearer token payload: enough to decide
// staleness locally, nothing more. The remote API re-validates signatures.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Codec decodes opaque bearer tokens without verifying them. It holds no
// state beyond the parser and is safe for concurrent use.
type Codec struct {
	parser *jwt.Parser
}

func NewCodec() *Codec {
	return &Codec{
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// Decode parses the token payload. It never contacts the network and never
// checks signatures. A token without a usable expiry is malformed: staleness
// is the one thing callers rely on.
func (c *Codec) Decode(token string) (*Claims, error) {
	parsed, _, err := c.parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrTokenMalformed
	}

	subject, _ := parsed.Claims.GetSubject()

	return &Claims{
		Subject:   subject,
		ExpiresAt: exp.Time,
	}, nil
}

// IsExpired reports whether the token is stale at the given instant. A
// token is live only while now is strictly before its expiry; anything the
// codec cannot decode counts as expired.
func (c *Codec) IsExpired(token string, now time.Time) bool {
	claims, err := c.Decode(token)
	if err != nil {
		return true
	}
	return !now.Before(claims.ExpiresAt)
}
