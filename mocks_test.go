package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/hsmss/go-console-auth"
)

// MockAuthAPI implements auth.AuthAPI
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, username, password string) (auth.TokenGrant, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.TokenGrant), args.Error(1)
}

func (m *MockAuthAPI) Signup(ctx context.Context, payload auth.SignupPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockAuthAPI) Refresh(ctx context.Context, refreshToken string) (auth.TokenGrant, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(auth.TokenGrant), args.Error(1)
}

// mintToken signs a throwaway HS256 token with the given expiry. The codec
// never verifies signatures, so the key is irrelevant.
func mintToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

// mintTokenWithoutExpiry signs a token missing the exp claim.
func mintTokenWithoutExpiry(t *testing.T, subject string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
	})

	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

// liveGrant mints a grant whose tokens expire well in the future.
func liveGrant(t *testing.T, userID int64) auth.TokenGrant {
	t.Helper()
	return auth.TokenGrant{
		AccessToken:  mintToken(t, "access", time.Now().Add(15*time.Minute)),
		RefreshToken: mintToken(t, "refresh", time.Now().Add(24*time.Hour)),
		UserID:       userID,
	}
}
