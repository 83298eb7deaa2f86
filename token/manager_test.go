package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/token"
	"github.com/tokengate/tokengate/users"
)

const (
	accessSecret  = "access-secret-1234"
	refreshSecret = "refresh-secret-5678"
)

func testUser() *users.User {
	return &users.User{
		ID:    "user-1",
		Name:  "John Doe",
		Email: "john.doe@example.com",
		Role:  users.RoleStudent,
	}
}

func TestNewRequiresDistinctSecrets(t *testing.T) {
	_, err := token.New("", refreshSecret)
	require.ErrorIs(t, err, token.ErrNoSecret)

	_, err = token.New(accessSecret, "")
	require.ErrorIs(t, err, token.ErrNoSecret)

	_, err = token.New("same-secret", "same-secret")
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m, err := token.New(accessSecret, refreshSecret, token.WithIssuer("com.testissuer"))
	require.NoError(t, err)

	signed, err := m.CreateAccessToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := m.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "john.doe@example.com", claims.Email)
	require.Equal(t, "student", claims.Role)
	require.Equal(t, "com.testissuer", claims.Issuer)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m, err := token.New(accessSecret, refreshSecret)
	require.NoError(t, err)

	signed, err := m.CreateRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := m.VerifyRefresh(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	m, err := token.New(accessSecret, refreshSecret)
	require.NoError(t, err)

	accessToken, err := m.CreateAccessToken(testUser())
	require.NoError(t, err)
	refreshToken, err := m.CreateRefreshToken("user-1")
	require.NoError(t, err)

	_, err = m.VerifyAccess(refreshToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = m.VerifyRefresh(accessToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestTamperedTokenIsRejected(t *testing.T) {
	m, err := token.New(accessSecret, refreshSecret)
	require.NoError(t, err)

	signed, err := m.CreateAccessToken(testUser())
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = m.VerifyAccess(tampered)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestWrongSecretIsRejected(t *testing.T) {
	m1, err := token.New(accessSecret, refreshSecret)
	require.NoError(t, err)
	m2, err := token.New("other-access-secret", "other-refresh-secret")
	require.NoError(t, err)

	signed, err := m1.CreateAccessToken(testUser())
	require.NoError(t, err)

	_, err = m2.VerifyAccess(signed)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	now := time.Now()
	current := now

	m, err := token.New(accessSecret, refreshSecret,
		token.WithTokenExpiry(15*time.Minute, 7*24*time.Hour),
		token.WithNowFunc(func() time.Time { return current }),
	)
	require.NoError(t, err)

	signed, err := m.CreateAccessToken(testUser())
	require.NoError(t, err)

	// Still valid just before expiry.
	current = now.Add(14 * time.Minute)
	_, err = m.VerifyAccess(signed)
	require.NoError(t, err)

	current = now.Add(16 * time.Minute)
	_, err = m.VerifyAccess(signed)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestGarbageTokenIsRejected(t *testing.T) {
	m, err := token.New(accessSecret, refreshSecret)
	require.NoError(t, err)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyAccess(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	}
}
