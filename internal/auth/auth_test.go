package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAccount("key", "secret", "acct-alice")

	token, err := service.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "acct-alice", claims.AccountID)
	assert.Contains(t, claims.Permissions, "escrow")
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAccount("key", "secret", "acct-alice")

	_, err := service.GenerateToken(Credentials{APIKey: "key", APISecret: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.GenerateToken(Credentials{APIKey: "unknown", APISecret: "secret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAccount("key", "secret", "acct-alice")

	token, err := service.GenerateToken(Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)

	other := NewService("different-secret")
	_, err = other.ValidateToken(token.Token)
	require.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	service := NewService("test-secret")

	_, err := service.ValidateToken("not-a-token")
	require.Error(t, err)
}
