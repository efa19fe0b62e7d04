// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// brokerIDKey is the context key for storing the authenticated broker ID.
const brokerIDKey ContextKey = "brokerID"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (BrokerIDGetter, error)
}

// BrokerIDGetter is an interface for extracting the broker ID from token claims.
type BrokerIDGetter interface {
	GetBrokerID() uuid.UUID
}

// AuthMiddleware creates middleware that validates JWT tokens and adds the
// broker ID to the request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Parse Bearer token, case-insensitive prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), brokerIDKey, claims.GetBrokerID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetBrokerID extracts the authenticated broker ID from the request context.
func GetBrokerID(r *http.Request) (uuid.UUID, error) {
	brokerID, ok := r.Context().Value(brokerIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("broker ID not found in request context")
	}
	return brokerID, nil
}

// WithBrokerID returns a context carrying the broker ID (for testing purposes).
func WithBrokerID(ctx context.Context, brokerID uuid.UUID) context.Context {
	return context.WithValue(ctx, brokerIDKey, brokerID)
}
