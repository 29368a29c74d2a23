package auth

import (
	"testing"

	"ledger-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	secret := "test-secret-test-secret-test-secret!"
	user := &models.User{ID: 7, Email: "boss@example.com", Role: models.RoleAdmin}

	tokenStr, err := GenerateToken(secret, user)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "boss@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestGenerateTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: 1, Email: "a@b.c", Role: models.RoleStaff}
	tokenStr, err := GenerateToken("secret-one-secret-one-secret-one!", user)
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(tokenStr, &JWTCustomClaims{}, func(*jwt.Token) (any, error) {
		return []byte("secret-two-secret-two-secret-two!"), nil
	})
	require.Error(t, err)
}
