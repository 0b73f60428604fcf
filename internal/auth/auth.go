// Package auth defines the authentication port and its implementations.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Mode is the form the credentials were submitted from.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

var (
	// ErrMissingCredentials is returned for an empty email or password.
	// Callers treat it as a silent rejection.
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password is too short")
)

// Credentials are the values submitted from the login or signup form.
type Credentials struct {
	Mode     Mode   `json:"mode"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the authenticated user of a session.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Authenticator verifies credentials.
type Authenticator interface {
	Verify(ctx context.Context, creds Credentials) (Identity, error)
}

// Stub accepts any non-empty email and password.
type Stub struct{}

// Verify implements Authenticator.
func (Stub) Verify(_ context.Context, creds Credentials) (Identity, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return Identity{}, ErrMissingCredentials
	}
	return Identity{Email: email, Name: strings.TrimSpace(creds.Name)}, nil
}

// IsRejection reports whether err is a credential rejection rather than a
// backend failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrWeakPassword)
}
