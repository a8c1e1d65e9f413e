package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// flushScript deletes every member of a tag set and the set itself in one
// server-side step.
var flushScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for i = 1, #keys, 500 do
	redis.call('DEL', unpack(keys, i, math.min(i + 499, #keys)))
end
redis.call('DEL', KEYS[1])
return #keys
`)

// RedisStore implements TaggedStore on Redis. Tag membership lives in a set
// per tag that expires with its newest member.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store whose keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) tagKey(tag string) string { return s.prefix + "tag:" + tag }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// SetTagged stores value and records key under tag atomically.
func (s *RedisStore) SetTagged(ctx context.Context, tag, key string, value []byte, ttl time.Duration) error {
	tk := s.tagKey(tag)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), value, ttl)
		pipe.SAdd(ctx, tk, s.key(key))
		if ttl > 0 {
			pipe.Expire(ctx, tk, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s tagged %s: %w", key, tag, err)
	}
	return nil
}

// FlushTag deletes every key recorded under tag.
func (s *RedisStore) FlushTag(ctx context.Context, tag string) error {
	if err := flushScript.Run(ctx, s.client, []string{s.tagKey(tag)}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis flush tag %s: %w", tag, err)
	}
	return nil
}

// Ping checks connectivity for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
