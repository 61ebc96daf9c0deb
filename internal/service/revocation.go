package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records, per user, the moment before which issued tokens
// are no longer honored. Tokens carry no server-side state, so this
// watermark is the only way to cut them short.
type RevocationStore interface {
	Revoke(ctx context.Context, userID string, at time.Time) error
	// RevokedBefore returns the watermark, or ok=false when none is set.
	RevokedBefore(ctx context.Context, userID string) (at time.Time, ok bool, err error)
}

type redisRevocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRevocationStore stores watermarks in Redis. Entries expire after
// TokenLifetime since no older token can still be valid.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{client: client, ttl: TokenLifetime}
}

func revocationKey(userID string) string {
	return fmt.Sprintf("token_revoked_before:%s", userID)
}

func (s *redisRevocationStore) Revoke(ctx context.Context, userID string, at time.Time) error {
	if err := s.client.Set(ctx, revocationKey(userID), at.Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation for user %s: %w", userID, err)
	}
	return nil
}

func (s *redisRevocationStore) RevokedBefore(ctx context.Context, userID string) (time.Time, bool, error) {
	unix, err := s.client.Get(ctx, revocationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read revocation for user %s: %w", userID, err)
	}
	return time.Unix(unix, 0), true, nil
}

// IsRevoked reports whether claims were issued before the user's watermark.
// A nil store never revokes. Comparison is at whole-second precision, the
// resolution of the iat claim.
func IsRevoked(ctx context.Context, store RevocationStore, claims *Claims) (bool, error) {
	if store == nil {
		return false, nil
	}
	at, ok, err := store.RevokedBefore(ctx, claims.Subject)
	if err != nil || !ok {
		return false, err
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return claims.IssuedAt.Unix() < at.Unix(), nil
}
