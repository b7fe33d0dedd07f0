package noncestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/custodia/ports"
)

// RedisStore keeps challenges in Redis so every instance behind a load
// balancer sees the same active nonce. Expiry is delegated to Redis TTLs;
// SET with expiry gives the same overwrite semantics as the memory store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed nonce store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "custodia:nonce:",
	}
}

var _ ports.NonceStore = (*RedisStore)(nil)

// Issue stores a fresh challenge for the address, replacing any prior one.
func (s *RedisStore) Issue(ctx context.Context, address string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, s.prefix+address, token, NonceTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return token, nil
}

// Check reports whether the address has a live challenge embedded in message.
// A missing key, a transport error, and a token mismatch are all the same
// fail-closed outcome.
func (s *RedisStore) Check(ctx context.Context, address, message string) bool {
	token, err := s.client.Get(ctx, s.prefix+address).Result()
	if err != nil {
		// redis.Nil and transport errors both fail closed; the caller may
		// retry within the TTL.
		return false
	}
	return containsToken(message, token)
}

// Consume removes the stored challenge, whatever its state.
func (s *RedisStore) Consume(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.prefix+address).Err(); err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nil
}
