package domain

import (
	"time"
)

// Account is a registered user of the account-backed authenticator.
type Account struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"-"`
	LastLoginAt  time.Time `json:"last_login_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasLoggedIn returns true if the account completed at least one login.
func (a *Account) HasLoggedIn() bool {
	return !a.LastLoginAt.IsZero()
}
