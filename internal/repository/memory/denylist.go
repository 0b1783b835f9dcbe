package memory

import (
	"context"
	"sync"
	"time"
)

// TokenDenylist records logged-out session tokens until they expire
type TokenDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenDenylist() *TokenDenylist {
	return &TokenDenylist{revoked: make(map[string]time.Time)}
}

func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, expires time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, exp := range d.revoked {
		if now.After(exp) {
			delete(d.revoked, id)
		}
	}
	if expires.After(now) {
		d.revoked[tokenID] = expires
	}
	return nil
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[tokenID]
	return ok && time.Now().Before(exp), nil
}
