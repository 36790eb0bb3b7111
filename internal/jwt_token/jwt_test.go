package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "docgate/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-key", "docgate", "docgate-api")

	token, err := svc.GenerateAccessToken("admin-1", []string{"principal", "super_admin"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.ActorID)
	assert.Equal(t, []string{"principal", "super_admin"}, claims.Roles)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, err := NewJWTService("key-a", "docgate", "docgate-api").GenerateAccessToken("admin-1", nil, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("key-b", "docgate", "docgate-api").ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-key", "docgate", "docgate-api")

	token, err := svc.GenerateAccessToken("admin-1", nil, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsAnonymousToken(t *testing.T) {
	svc := NewJWTService("test-key", "docgate", "docgate-api")

	token, err := svc.GenerateAccessToken("", []string{"clerk"}, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
