package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to new accounts.
const MinPasswordLength = 8

// Accounts verifies credentials against registered accounts. Signup
// registers a new account; login checks the stored bcrypt hash.
type Accounts struct {
	repo    store.AccountRepository
	cost    int
	nowFunc func() time.Time
}

// NewAccounts creates an account-backed authenticator.
func NewAccounts(repo store.AccountRepository) *Accounts {
	return &Accounts{repo: repo, cost: bcrypt.DefaultCost, nowFunc: time.Now}
}

// Verify implements Authenticator.
func (a *Accounts) Verify(ctx context.Context, creds Credentials) (Identity, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return Identity{}, ErrMissingCredentials
	}

	if creds.Mode == ModeSignup {
		return a.register(ctx, email, strings.TrimSpace(creds.Name), creds.Password)
	}
	return a.login(ctx, email, creds.Password)
}

func (a *Accounts) register(ctx context.Context, email, name, password string) (Identity, error) {
	if len(password) < MinPasswordLength {
		return Identity{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.nowFunc()
	acc := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		LastLoginAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.repo.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Identity{}, ErrAccountExists
		}
		return Identity{}, fmt.Errorf("register account: %w", err)
	}

	slog.Info("Account registered", "email", email)
	return Identity{Email: email, Name: name}, nil
}

func (a *Accounts) login(ctx context.Context, email, password string) (Identity, error) {
	acc, err := a.repo.GetAccount(ctx, email)
	if err != nil {
		return Identity{}, fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	if err := a.repo.UpdateLastLogin(ctx, email, a.nowFunc()); err != nil {
		slog.Warn("Failed to record login", "error", err, "email", email)
	}
	return Identity{Email: acc.Email, Name: acc.Name}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
