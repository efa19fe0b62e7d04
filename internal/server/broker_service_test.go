package server

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digifynow/autofill-agent/internal/config"
)

func newTestBrokerService() (*BrokerService, *fakeBrokers) {
	brokers := newFakeBrokers()
	return NewBrokerService(brokers, &config.PasswordConfig{BcryptCost: 10}), brokers
}

func TestBrokerService_RegisterAndLogin(t *testing.T) {
	service, _ := newTestBrokerService()
	ctx := context.Background()

	broker, err := service.Register(ctx, &RegisterRequest{
		Name: "Testmakler", Email: "makler@example.de", Password: "sehr-geheim-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "makler@example.de", broker.Email)
	assert.True(t, broker.PasswordSet)

	got, err := service.Login(ctx, &LoginRequest{Email: "makler@example.de", Password: "sehr-geheim-123"})
	require.NoError(t, err)
	assert.Equal(t, broker.ID, got.ID)
}

func TestBrokerService_RegisterDuplicateEmail(t *testing.T) {
	service, _ := newTestBrokerService()
	ctx := context.Background()

	_, err := service.Register(ctx, &RegisterRequest{
		Name: "Eins", Email: "makler@example.de", Password: "sehr-geheim-123",
	})
	require.NoError(t, err)

	_, err = service.Register(ctx, &RegisterRequest{
		Name: "Zwei", Email: "makler@example.de", Password: "anderes-geheimnis",
	})
	require.Error(t, err)
	var exists *ErrEmailAlreadyExists
	assert.ErrorAs(t, err, &exists)
}

func TestBrokerService_LoginFailures(t *testing.T) {
	service, _ := newTestBrokerService()
	ctx := context.Background()

	_, err := service.Register(ctx, &RegisterRequest{
		Name: "Testmakler", Email: "makler@example.de", Password: "sehr-geheim-123",
	})
	require.NoError(t, err)

	// Wrong password and unknown email yield the same generic error
	_, err = service.Login(ctx, &LoginRequest{Email: "makler@example.de", Password: "falsch"})
	var invalid *ErrInvalidCredentials
	assert.ErrorAs(t, err, &invalid)

	_, err = service.Login(ctx, &LoginRequest{Email: "niemand@example.de", Password: "egal"})
	assert.ErrorAs(t, err, &invalid)
}

func TestBrokerService_UpdatePassword(t *testing.T) {
	service, _ := newTestBrokerService()
	ctx := context.Background()

	broker, err := service.Register(ctx, &RegisterRequest{
		Name: "Testmakler", Email: "makler@example.de", Password: "sehr-geheim-123",
	})
	require.NoError(t, err)

	// Wrong current password is rejected
	err = service.UpdatePassword(ctx, broker.ID, "falsch", "neues-geheimnis-456")
	var invalid *ErrInvalidCredentials
	require.ErrorAs(t, err, &invalid)

	require.NoError(t, service.UpdatePassword(ctx, broker.ID, "sehr-geheim-123", "neues-geheimnis-456"))

	_, err = service.Login(ctx, &LoginRequest{Email: "makler@example.de", Password: "neues-geheimnis-456"})
	assert.NoError(t, err)

	_, err = service.Login(ctx, &LoginRequest{Email: "makler@example.de", Password: "sehr-geheim-123"})
	assert.Error(t, err)
}

func TestBrokerService_UpdatePasswordUnknownBroker(t *testing.T) {
	service, _ := newTestBrokerService()

	err := service.UpdatePassword(context.Background(), uuid.New(), "egal", "neues-geheimnis-456")
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}
