package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// TokenDenylist tracks logged-out tokens
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, expires time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LoginResult is a freshly issued session token
type LoginResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// AuthService handles authentication operations
type AuthService struct {
	accounts   domain.AccountRepository
	jwtManager *security.JWTManager
	denylist   TokenDenylist
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts domain.AccountRepository,
	jwtManager *security.JWTManager,
	denylist TokenDenylist,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		jwtManager: jwtManager,
		denylist:   denylist,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, input domain.AccountCreate) (*domain.Account, error) {
	email := strings.TrimSpace(input.Email)

	// Check if email already exists
	exists, err := s.accounts.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Info().Str("user_id", account.ID.String()).Msg("Account registered")
	return account, nil
}

// Login verifies the credentials and issues a session token
func (s *AuthService) Login(ctx context.Context, input domain.Credentials) (*LoginResult, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.jwtManager.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResult{Account: account, Token: token, ExpiresAt: expires}, nil
}

// Authenticate resolves a session token to its account
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Account, *security.Claims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check token: %w", err)
		}
		if revoked {
			return nil, nil, ErrInvalidToken
		}
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, nil, ErrInvalidToken
	}

	return account, claims, nil
}

// Logout revokes the token until it would have expired
func (s *AuthService) Logout(ctx context.Context, claims *security.Claims) error {
	if s.denylist == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// GetUserByID retrieves an account by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, userID)
}

// TokenTTL returns the session token lifetime
func (s *AuthService) TokenTTL() time.Duration {
	return s.jwtManager.TTL()
}
