package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simmer-app/backend/internal/apperror"
)

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenService_VerifySubject(t *testing.T) {
	svc := NewTokenService("secret")

	token := signTestToken(t, "secret", jwt.MapClaims{"sub": "auth0|alice", "exp": time.Now().Add(time.Hour).Unix()})
	subject, err := svc.VerifySubject(token)
	require.NoError(t, err)
	assert.Equal(t, "auth0|alice", subject)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	svc := NewTokenService("secret")

	token := signTestToken(t, "other-secret", jwt.MapClaims{"sub": "auth0|alice"})
	_, err := svc.VerifySubject(token)
	require.Error(t, err)
	assert.Equal(t, apperror.KindAuthentication, apperror.KindOf(err))
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("secret")

	token := signTestToken(t, "secret", jwt.MapClaims{"sub": "auth0|alice", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err := svc.VerifySubject(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsMissingSubject(t *testing.T) {
	svc := NewTokenService("secret")

	token := signTestToken(t, "secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err := svc.VerifySubject(token)
	require.Error(t, err)
	assert.Equal(t, apperror.KindAuthentication, apperror.KindOf(err))
}
