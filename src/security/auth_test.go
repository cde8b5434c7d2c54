package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret", time.Minute)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	sub, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)

	other := NewAuthService("other-secret", time.Minute)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	auth := NewAuthService("test-secret", time.Minute)
	claims := jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	auth := NewAuthService("s", time.Minute)
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, auth.CompareHashAndPassword(hash, "correct horse"))
	assert.Error(t, auth.CompareHashAndPassword(hash, "wrong"))
}

func TestRefreshTokensAreRandom(t *testing.T) {
	auth := NewAuthService("s", time.Minute)
	a, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44)
}
