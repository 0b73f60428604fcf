// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/neuroscanx/internal/domain"
)

// ErrDuplicate is returned when creating a record whose key already exists.
var ErrDuplicate = errors.New("record already exists")

// AccountRepository defines the interface for persisting registered accounts.
// Analysis results are never persisted.
type AccountRepository interface {
	// GetAccount retrieves an account by normalized email. Returns nil, nil when absent.
	GetAccount(ctx context.Context, email string) (*domain.Account, error)

	// CreateAccount inserts a new account. Returns ErrDuplicate if the email is taken.
	CreateAccount(ctx context.Context, account *domain.Account) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, email string, at time.Time) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
