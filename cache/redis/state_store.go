package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/cache"
	"github.com/redis/go-redis/v9"
)

// StateStore implements cache.StateStore on Redis, so that a callback may
// land on a different instance than the one that issued the state.
type StateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *redis.Client, prefix string, ttl time.Duration) *StateStore {
	return &StateStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *StateStore) redisKey(state string) string {
	return fmt.Sprintf("%s:oauth_state:%s", s.prefix, state)
}

// Issue generates a state and records it with the configured TTL. SETNX
// guards against overwriting on a value collision; the loop regenerates.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	for {
		state, err := cache.GenerateState()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, s.redisKey(state), "1", s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store state in redis: %w", err)
		}
		if ok {
			return state, nil
		}
	}
}

// Consume removes the state with GETDEL, which is atomic server-side:
// concurrent replays of the same value can succeed at most once.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	_, err := s.client.GetDel(ctx, s.redisKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume state from redis: %w", err)
	}
	return true, nil
}

// Close closes the underlying Redis client.
func (s *StateStore) Close() error {
	return s.client.Close()
}

var _ cache.StateStore = (*StateStore)(nil)
