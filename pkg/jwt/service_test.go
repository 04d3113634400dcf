package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken("user-42", "Dana", RoleSpecialist)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())
	assert.Equal(t, RoleSpecialist, claims.Role)
	assert.True(t, claims.Role.Staff())
	assert.True(t, claims.HasRole(RoleSpecialist))
	assert.False(t, claims.HasRole(RoleAdmin))
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuer, err := NewService("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewService("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.GenerateToken("u", "", RoleUser)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	svc, err := NewService("secret", time.Minute)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateToken("u", "", RoleUser)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestServiceRequiresSecret(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)

	svc, err := NewService("s", 0)
	require.NoError(t, err)
	_, err = svc.GenerateToken("u", "", Role("root"))
	assert.Error(t, err)
	assert.True(t, RoleAdmin.Staff())
}

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret()
	require.NoError(t, err)
	b, err := RandomSecret()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
