package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisVersionKey = "authz:resolved:version"
	redisBumpChan   = "authz.bump"
)

// RedisCache shares resolved closures between advisory processes.
//
// Entries are stored under versioned keys with a TTL; invalidation bumps the
// global version so every older entry goes cold at once, and publishes the
// new version so subscribed processes pick it up immediately. Readers accept
// eventual consistency between a mutation and the bump reaching them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache instantiates the cache helper.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising it when missing.
func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, redisVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, redisVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Fetch loads the cached closure for userID or populates it via loader.
// A nil cache or client degrades to calling the loader directly.
func (c *RedisCache) Fetch(ctx context.Context, userID string, loader func(context.Context) (StringSet, error)) (StringSet, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var names []string
		if err := json.Unmarshal(payload, &names); err != nil {
			return nil, err
		}
		return NewStringSet(names...), nil
	}
	if err != redis.Nil {
		return nil, err
	}

	set, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(set.Slice())
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Store writes a precomputed closure for userID, used by warmup jobs.
func (c *RedisCache) Store(ctx context.Context, userID string, set StringSet) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(set.Slice())
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates all entries by incrementing the version and publishing it.
func (c *RedisCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, redisVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, redisBumpChan, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps until ctx is done.
func (c *RedisCache) ListenForInvalidation(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, redisBumpChan)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					_ = c.client.Set(ctx, redisVersionKey, ver, 0).Err()
				}
			}
		}
	}()
	return nil
}

func (c *RedisCache) key(ctx context.Context, userID string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:resolved:%d:%s", ver, userID), nil
}
