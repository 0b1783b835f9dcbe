package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the identity resolved by the auth check
type User struct {
	ID        string `json:"_id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// DisplayName returns the full name, falling back to first and last name
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials returns the upper-cased first letters of the first and last name
func (u User) Initials() string {
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

// AuthStatus is the state of the identity check
type AuthStatus string

const (
	AuthPending       AuthStatus = "pending"
	AuthAuthenticated AuthStatus = "authenticated"
	AuthDenied        AuthStatus = "denied"
)

// AuthService resolves the current user against the backend.
// A nil user with a nil error means the backend answered without a user.
type AuthService interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// Account is a registered user as stored by the reference backend
type Account struct {
	ID           uuid.UUID `json:"_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile returns the client-facing view of the account
func (a *Account) Profile() User {
	return User{
		ID:        a.ID.String(),
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		FullName:  strings.TrimSpace(a.FirstName + " " + a.LastName),
	}
}

// AccountCreate represents user registration data
type AccountCreate struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// Credentials represents login data
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountRepository defines the interface for account storage
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
