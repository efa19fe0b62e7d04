package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/config"
	"github.com/digifynow/autofill-agent/internal/db"
)

// BrokerStore is the subset of database operations the broker service needs.
// *db.DB satisfies it; tests substitute an in-memory fake.
type BrokerStore interface {
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	CreateBroker(ctx context.Context, name, email string) (uuid.UUID, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	GetBroker(ctx context.Context, id uuid.UUID) (*db.Broker, error)
	GetBrokerByEmail(ctx context.Context, email string) (*db.Broker, error)
}

// BrokerService provides business logic for broker authentication operations
type BrokerService struct {
	store          BrokerStore
	passwordConfig *config.PasswordConfig
}

// NewBrokerService creates a new BrokerService with the given dependencies
func NewBrokerService(store BrokerStore, passwordConfig *config.PasswordConfig) *BrokerService {
	return &BrokerService{
		store:          store,
		passwordConfig: passwordConfig,
	}
}

// Register creates a new broker account with password authentication
func (s *BrokerService) Register(ctx context.Context, req *RegisterRequest) (*db.Broker, error) {
	exists, err := s.store.CheckEmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, &ErrEmailAlreadyExists{Email: req.Email}
	}

	passwordHash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Two-step: create the broker, then set the password
	brokerID, err := s.store.CreateBroker(ctx, req.Name, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, brokerID, passwordHash); err != nil {
		return nil, fmt.Errorf("failed to set password: %w", err)
	}

	broker, err := s.store.GetBroker(ctx, brokerID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created broker: %w", err)
	}
	if broker == nil {
		return nil, fmt.Errorf("created broker not found: %s", brokerID)
	}

	return broker, nil
}

// Login authenticates a broker and returns the account data
func (s *BrokerService) Login(ctx context.Context, req *LoginRequest) (*db.Broker, error) {
	broker, err := s.store.GetBrokerByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get broker by email: %w", err)
	}

	// Security: always return a generic error whether the account is
	// missing or the password is wrong
	if broker == nil {
		return nil, &ErrInvalidCredentials{}
	}

	if !s.passwordConfig.VerifyPassword(req.Password, broker.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}

	if !broker.PasswordSet {
		return nil, &ErrInvalidCredentials{}
	}

	return broker, nil
}

// UpdatePassword changes a broker's password after verifying the current one
func (s *BrokerService) UpdatePassword(ctx context.Context, brokerID uuid.UUID, currentPassword, newPassword string) error {
	broker, err := s.store.GetBroker(ctx, brokerID)
	if err != nil {
		return fmt.Errorf("failed to get broker: %w", err)
	}
	if broker == nil {
		return &ErrNotFound{Resource: "broker", ID: brokerID}
	}

	if !s.passwordConfig.VerifyPassword(currentPassword, broker.PasswordHash) {
		return &ErrInvalidCredentials{}
	}

	newHash, err := s.passwordConfig.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, brokerID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}
