package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	denylistPrefix = "revoked:"
)

// TokenDenylist records logged-out session tokens until they expire
type TokenDenylist struct {
	client *Client
}

// NewTokenDenylist creates a new token denylist
func NewTokenDenylist(client *Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

// Revoke marks the token id as revoked until the token's own expiry
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, expires time.Time) error {
	ttl := time.Until(expires)
	if ttl <= 0 {
		return nil
	}

	if err := d.client.rdb.Set(ctx, denylistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id was revoked
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := d.client.rdb.Get(ctx, denylistPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return true, nil
}
