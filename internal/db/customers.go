package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digifynow/autofill-agent/internal/types"
)

// Customer represents a stored customer record with ownership metadata.
// The profile sections are kept as one JSONB document; their shape is
// types.CustomerRecord minus the identifiers.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	BrokerID  uuid.UUID `json:"broker_id"`
	Record    types.CustomerRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// customerProfile is the JSONB payload stored per customer.
type customerProfile struct {
	Personal   types.PersonalSection   `json:"personal"`
	Address    types.AddressSection    `json:"address"`
	Employment types.EmploymentSection `json:"employment"`
	Finance    types.FinanceSection    `json:"finance"`
}

// CreateCustomer inserts a customer record and returns its ID
func (db *DB) CreateCustomer(ctx context.Context, brokerID uuid.UUID, record *types.CustomerRecord) (uuid.UUID, error) {
	profileJSON, err := json.Marshal(customerProfile{
		Personal:   record.Personal,
		Address:    record.Address,
		Employment: record.Employment,
		Finance:    record.Finance,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal customer profile: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO customers (broker_id, profile)
		 VALUES ($1, $2)
		 RETURNING id`,
		brokerID, profileJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return id, nil
}

// GetCustomer retrieves a customer by ID, or nil when it does not exist
func (db *DB) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var c Customer
	var profileJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, broker_id, profile, created_at, updated_at FROM customers WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.BrokerID, &profileJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	var profile customerProfile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer profile: %w", err)
	}
	c.Record = types.CustomerRecord{
		ID:         c.ID,
		BrokerID:   c.BrokerID,
		Personal:   profile.Personal,
		Address:    profile.Address,
		Employment: profile.Employment,
		Finance:    profile.Finance,
	}
	return &c, nil
}

// ListCustomersByBroker returns all customers a broker owns, newest first
func (db *DB) ListCustomersByBroker(ctx context.Context, brokerID uuid.UUID) ([]Customer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, broker_id, profile, created_at, updated_at
		 FROM customers WHERE broker_id = $1
		 ORDER BY created_at DESC`,
		brokerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		var profileJSON []byte
		if err := rows.Scan(&c.ID, &c.BrokerID, &profileJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		var profile customerProfile
		if err := json.Unmarshal(profileJSON, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customer profile: %w", err)
		}
		c.Record = types.CustomerRecord{
			ID:         c.ID,
			BrokerID:   c.BrokerID,
			Personal:   profile.Personal,
			Address:    profile.Address,
			Employment: profile.Employment,
			Finance:    profile.Finance,
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// UpdateCustomer replaces a customer's profile sections
func (db *DB) UpdateCustomer(ctx context.Context, id, brokerID uuid.UUID, record *types.CustomerRecord) error {
	profileJSON, err := json.Marshal(customerProfile{
		Personal:   record.Personal,
		Address:    record.Address,
		Employment: record.Employment,
		Finance:    record.Finance,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal customer profile: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE customers SET profile = $1, updated_at = NOW() WHERE id = $2 AND broker_id = $3`,
		profileJSON, id, brokerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s not found", id)
	}
	return nil
}

// DeleteCustomer removes a customer owned by the broker
func (db *DB) DeleteCustomer(ctx context.Context, id, brokerID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM customers WHERE id = $1 AND broker_id = $2`,
		id, brokerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s not found", id)
	}
	return nil
}
