// Package auth resolves the client's identity before any chat operation.
package auth

import (
	"context"
	"sync"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Gate runs the identity check and holds its result
type Gate struct {
	service domain.AuthService

	mu     sync.RWMutex
	status domain.AuthStatus
	user   *domain.User
	err    error
}

// NewGate creates a gate in the pending state
func NewGate(service domain.AuthService) *Gate {
	return &Gate{service: service, status: domain.AuthPending}
}

// Resolve performs one identity check. Any failure or a missing user denies access;
// there is no retry.
func (g *Gate) Resolve(ctx context.Context) domain.AuthStatus {
	user, err := g.service.CurrentUser(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case err != nil:
		g.status, g.user, g.err = domain.AuthDenied, nil, &domain.AuthError{Err: err}
		log.Warn().Err(err).Msg("Identity check failed")
	case user == nil:
		g.status, g.user, g.err = domain.AuthDenied, nil, &domain.AuthError{Err: domain.ErrUnauthenticated}
		log.Info().Msg("Not authenticated")
	default:
		u := *user
		g.status, g.user, g.err = domain.AuthAuthenticated, &u, nil
		log.Info().Str("user_id", u.ID).Msg("Authenticated")
	}

	return g.status
}

// Status returns the current status
func (g *Gate) Status() domain.AuthStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Authenticated reports whether a user was resolved
func (g *Gate) Authenticated() bool {
	return g.Status() == domain.AuthAuthenticated
}

// User returns a copy of the resolved user, or nil
func (g *Gate) User() *domain.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return nil
	}
	u := *g.user
	return &u
}

// Err returns why the last check denied access
func (g *Gate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Reset drops the user and returns to pending
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status, g.user, g.err = domain.AuthPending, nil, nil
}
