package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newIssuer(now *time.Time) *TokenIssuer {
	return NewTokenIssuer(Options{
		Secret:   []byte("test-secret"),
		Issuer:   "coursework-api",
		Audience: "coursework-clients",
		TTL:      time.Hour,
		Clock:    func() time.Time { return *now },
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	now := time.Now()
	issuer := newIssuer(&now)

	token, err := issuer.GenerateToken("u-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.NotEmpty(t, claims.ID)
}

func TestValidateToken_Invalid(t *testing.T) {
	now := time.Now()
	_, err := newIssuer(&now).ValidateToken("invalid.token")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateToken_Expired(t *testing.T) {
	now := time.Now()
	issuer := newIssuer(&now)
	token, err := issuer.GenerateToken("u-1", "alice")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = issuer.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_OtherIssuer(t *testing.T) {
	now := time.Now()
	other := NewTokenIssuer(Options{Secret: []byte("test-secret"), Issuer: "someone-else", Audience: "coursework-clients"})
	token, err := other.GenerateToken("u-1", "alice")
	require.NoError(t, err)

	_, err = newIssuer(&now).ValidateToken(token)
	require.Error(t, err)
}

func TestRevoke(t *testing.T) {
	now := time.Now()
	issuer := newIssuer(&now)
	token, err := issuer.GenerateToken("u-1", "alice")
	require.NoError(t, err)
	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)

	issuer.Revoke(claims)
	_, err = issuer.ValidateToken(token)
	require.ErrorIs(t, err, ErrRevokedToken)

	fresh, err := issuer.GenerateToken("u-1", "alice")
	require.NoError(t, err)
	_, err = issuer.ValidateToken(fresh)
	require.NoError(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "secret"))
	require.False(t, CheckPassword(hash, "wrong"))
}
