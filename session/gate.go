package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate/internal"
)

var (
	// ErrNotFound reports a token with no backing record. Revoked, expired,
	// and never-issued tokens are indistinguishable to the caller.
	ErrNotFound = errors.New("session not found")
	// ErrExpired reports a record past ExpiresAt that Redis had not yet
	// reaped. The record is deleted before this is returned.
	ErrExpired = errors.New("session expired")
	// ErrRedisUnavailable reports a Redis backend failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Gate issues, validates, and revokes opaque session tokens against Redis.
// Safe for concurrent use.
type Gate struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewGate creates a session gate. prefix namespaces the Redis keys; ttl is
// the fixed session lifetime.
func NewGate(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Gate {
	if prefix == "" {
		prefix = "ag:s:"
	}
	return &Gate{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a fresh token for the user and persists its record with the
// gate TTL. The returned token is the only copy; it cannot be recovered
// from Redis.
func (g *Gate) Issue(ctx context.Context, userID, username string) (string, Record, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return "", Record{}, err
	}

	now := g.now()
	rec := Record{
		UserID:    userID,
		Username:  username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(g.ttl).Unix(),
	}

	data, err := Encode(&rec)
	if err != nil {
		return "", Record{}, err
	}

	if err := g.redis.Set(ctx, g.key(token), data, g.ttl).Err(); err != nil {
		return "", Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return token, rec, nil
}

// Validate resolves a token to its record. Expired records are deleted on
// the way out (lazy expiry) and reported as [ErrExpired].
func (g *Gate) Validate(ctx context.Context, token string) (Record, error) {
	key := g.key(token)

	data, err := g.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		// Undecodable records fail closed and are removed.
		_ = g.redis.Del(ctx, key).Err()
		return Record{}, ErrNotFound
	}

	if g.now().Unix() >= rec.ExpiresAt {
		_ = g.redis.Del(ctx, key).Err()
		return Record{}, ErrExpired
	}

	return *rec, nil
}

// Revoke deletes the record for a token. Revoking an unknown or already
// revoked token succeeds; the operation is idempotent.
func (g *Gate) Revoke(ctx context.Context, token string) error {
	if err := g.redis.Del(ctx, g.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (g *Gate) key(token string) string {
	sum := internal.HashSessionToken(token)
	return g.prefix + base64.RawURLEncoding.EncodeToString(sum[:])
}
