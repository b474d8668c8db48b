package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestUtil(accessExpiry time.Duration) *JWTUtil {
	return NewJWTUtil(&JWTConfig{
		SigningKey:    "test-signing-key",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 30 * 24 * time.Hour,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	util := newTestUtil(45 * time.Minute)

	token, err := util.GenerateAccessToken("admin@example.com", 7, "super_admin")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := util.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "super_admin", claims.Role)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	util := newTestUtil(-time.Minute)

	token, err := util.GenerateAccessToken("admin@example.com", 7, "super_admin")
	assert.NoError(t, err)

	_, err = util.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := newTestUtil(time.Hour).GenerateAccessToken("admin@example.com", 7, "super_admin")
	assert.NoError(t, err)

	other := NewJWTUtil(&JWTConfig{SigningKey: "different-key", AccessExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := newTestUtil(time.Hour).ValidateToken("not-a-token")
	assert.Error(t, err)
}
