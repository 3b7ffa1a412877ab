package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewService("secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, "01HSESSION")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "01HSESSION", claims.SessionID)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	a, _ := NewService("secret-a", time.Hour)
	b, _ := NewService("secret-b", time.Hour)

	token, err := a.GenerateToken(1, "sid")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc, _ := NewService("secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateToken(1, "sid")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	svc, err := NewService("s", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, svc.Expiry())
}
