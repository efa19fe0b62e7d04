package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digifynow/autofill-agent/internal/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{Secret: "test-secret-at-least-32-characters-long", ExpirationHours: 1}
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	brokerID := uuid.New()

	token, err := service.GenerateToken(brokerID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, brokerID, claims.GetBrokerID())
}

func TestJWTService_WrongSecret(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	token, err := service.GenerateToken(uuid.New())
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: "a-completely-different-secret-value", ExpirationHours: 1})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	expired := NewJWTService(&config.JWTConfig{Secret: "test-secret-at-least-32-characters-long", ExpirationHours: -1})
	token, err := expired.GenerateToken(uuid.New())
	require.NoError(t, err)

	service := NewJWTService(testJWTConfig())
	_, err = service.ValidateToken(token)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_InvalidTokens(t *testing.T) {
	service := NewJWTService(testJWTConfig())

	_, err := service.ValidateToken("")
	assert.Error(t, err)

	_, err = service.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestJWTService_AsTokenValidator(t *testing.T) {
	service := NewJWTService(testJWTConfig())
	brokerID := uuid.New()

	token, err := service.GenerateToken(brokerID)
	require.NoError(t, err)

	validator := service.AsTokenValidator()
	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, brokerID, claims.GetBrokerID())
}
