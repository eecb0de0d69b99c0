package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("owner-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "owner-1", claims.OwnerID)

	_, err = ParseToken(token, []byte("other"))
	require.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken("owner-1", []byte("secret"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("secret"))
	require.Error(t, err)
}

func TestGenerateRequiresOwner(t *testing.T) {
	_, err := GenerateToken("", []byte("secret"), time.Hour)
	require.Error(t, err)
}
