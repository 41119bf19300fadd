package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caregrid/caregrid/internal/ports"
)

// Denylist records revoked refresh-token fingerprints until their natural
// expiry. All gateway replicas consult the same store, so a logout on one
// replica invalidates the refresh token everywhere.
type Denylist struct {
	client redis.UniversalClient
	prefix string
}

// NewDenylist creates a Redis-backed token denylist.
func NewDenylist(client redis.UniversalClient) *Denylist {
	return &Denylist{client: client, prefix: "revoked:"}
}

var _ ports.TokenDenylist = (*Denylist)(nil)

// Revoke marks a token fingerprint as revoked for ttl. A non-positive ttl
// means the token already expired and there is nothing to record.
func (d *Denylist) Revoke(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.prefix+fingerprint, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the fingerprint has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, errors.New("fingerprint cannot be empty")
	}
	_, err := d.client.Get(ctx, d.prefix+fingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}
