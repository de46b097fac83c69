package store

import (
	"context"
	"fmt"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore keeps revoked session ids as Redis keys that expire
// together with the credential.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationStore creates a new Redis revocation store
func NewRedisRevocationStore(client redis.UniversalClient) ports.RevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "walletauth:revoked:",
	}
}

// Revoke denies session until its expiry. The value is the session address, for inspection.
func (s *RedisRevocationStore) Revoke(ctx context.Context, session *core.Session) error {
	err := s.client.SetArgs(ctx, s.prefix+session.ID, session.Address.Hex(), redis.SetArgs{
		ExpireAt: session.ExpiresAt,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// IsRevoked reports whether sessionID is denied
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}

	return n > 0, nil
}
