package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "sso-internal", 0)

	signed, exp, err := tm.GenerateToken("user-admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, time.Second)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-admin", claims.Service)
	assert.Equal(t, "user-admin", claims.Subject)
}

func TestTokenManager_RejectsForeignAssertions(t *testing.T) {
	tm := NewTokenManager("secret", "sso-internal", 5)

	other, _, err := NewTokenManager("other", "sso-internal", 5).GenerateToken("svc")
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.Error(t, err)

	wrongAudience, _, err := NewTokenManager("secret", "billing", 5).GenerateToken("svc")
	require.NoError(t, err)
	_, err = tm.ParseToken(wrongAudience)
	assert.Error(t, err)

	_, err = tm.ParseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenManager_RequiresServiceAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", "sso-internal", 5)

	noService := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"sso-internal"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := noService.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Service:          "svc",
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"sso-internal"}},
	})
	signed, err = noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Service: "svc",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"sso-internal"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err = expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
