package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Rrens/apex-chat/internal/api/response"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/security"
	"github.com/Rrens/apex-chat/internal/service"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	AccountKey contextKey = "account"
	ClaimsKey  contextKey = "claims"
)

var ErrNoToken = errors.New("missing session token")

// AuthMiddleware authenticates requests by session cookie or bearer token
type AuthMiddleware struct {
	authService *service.AuthService
	cookieName  string
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *service.AuthService, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, cookieName: cookieName}
}

// Token extracts the session token, preferring the cookie
func (m *AuthMiddleware) Token(r *http.Request) (string, error) {
	if ck, err := r.Cookie(m.cookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// Resolve authenticates the request without writing a response
func (m *AuthMiddleware) Resolve(r *http.Request) (*domain.Account, *security.Claims, error) {
	token, err := m.Token(r)
	if err != nil {
		return nil, nil, err
	}
	return m.authService.Authenticate(r.Context(), token)
}

// Authenticate rejects requests without a valid session
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, claims, err := m.Resolve(r)
		if err != nil {
			if !errors.Is(err, ErrNoToken) && !errors.Is(err, service.ErrInvalidToken) {
				log.Error().Err(err).Msg("Authentication failed")
			}
			response.Unauthorized(w, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), AccountKey, account)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAccount gets the authenticated account from context
func GetAccount(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*domain.Account)
	return account, ok && account != nil
}

// GetClaims gets the session token claims from context
func GetClaims(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*security.Claims)
	return claims, ok && claims != nil
}

// WithAccount stores an account in the context
func WithAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter service.RateLimiter
	prefix      string
}

// NewRateLimitMiddleware creates a new rate limit middleware. prefix separates
// its counters from other users of the same limiter.
func NewRateLimitMiddleware(rateLimiter service.RateLimiter, prefix string) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter, prefix: prefix}
}

// Limit applies rate limiting based on the authenticated account
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := GetAccount(r.Context())
		if !ok {
			response.Unauthorized(w, "Unauthorized")
			return
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), m.prefix+account.ID.String())
		if err != nil {
			// If rate limiter fails, allow the request but log the error
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		// Set rate limit headers
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format("2006-01-02T15:04:05Z"))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
