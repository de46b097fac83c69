package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisNonceStore keeps outstanding challenges in Redis with a TTL.
// Take relies on GETDEL, so concurrent consumers across instances see a nonce at most once.
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client redis.UniversalClient) ports.NonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "walletauth:challenge:",
		now:    time.Now,
	}
}

func (s *RedisNonceStore) key(address common.Address) string {
	return s.prefix + address.Hex()
}

// Put stores the challenge, replacing the previous one for the address
func (s *RedisNonceStore) Put(ctx context.Context, challenge *core.Challenge) error {
	ttl := challenge.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired")
	}

	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := s.client.Set(ctx, s.key(challenge.Address), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	return nil
}

// Take removes and returns the outstanding challenge for address
func (s *RedisNonceStore) Take(ctx context.Context, address common.Address) (*core.Challenge, error) {
	payload, err := s.client.GetDel(ctx, s.key(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrChallengeExpiredOrUnknown
		}
		return nil, fmt.Errorf("failed to take challenge: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	if challenge.Address != address || challenge.Expired(s.now()) {
		return nil, core.ErrChallengeExpiredOrUnknown
	}

	return &challenge, nil
}
