package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Denylist records revoked token IDs in redis until they would have
// expired anyway. Logout is the only writer.
type Denylist struct {
	redis redisCommander
}

// NewDenylist wraps a redis client.
func NewDenylist(client redisCommander) *Denylist {
	return &Denylist{redis: client}
}

func denylistKey(jti string) string {
	return "token:denied:" + jti
}

// Revoke marks a jti as unusable until expiry.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return nil
	}
	return d.redis.Set(ctx, denylistKey(jti), "revoked", ttl).Err()
}

// Revoked reports whether a jti has been revoked.
func (d *Denylist) Revoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.redis.Exists(ctx, denylistKey(jti)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}
