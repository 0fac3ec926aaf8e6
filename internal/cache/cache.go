// Package cache is a thin JSON cache over redis. A nil *Cache is valid and
// behaves as an always-empty cache, so redis stays optional.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"practice-portal/internal/logger"
)

const (
	PrefixPosts     = "content:posts:"
	PrefixResources = "content:resources:"
	PrefixCourses   = "courses:"
	KeyAdminStats   = "admin:stats:"
	KeyReminderLock = "reminders:lock"
)

type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb, TTL: ttl}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.Client.Close()
}

// GetJSON decodes the value at key into dst. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil {
		return false, nil
	}
	b, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// a value we cannot read is as good as a miss
		_ = c.Client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON stores v under key. A zero ttl uses the cache default.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if ttl == 0 {
		ttl = c.TTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, b, ttl).Err()
}

// Fetch returns the cached value for key or calls load and caches its result.
// Redis failures are logged and fall through to load.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if ok, err := c.GetJSON(ctx, key, &v); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.SetJSON(ctx, key, v, ttl); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

// InvalidatePrefix deletes every key starting with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if c == nil {
		return nil
	}
	iter := c.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

// TryLock takes key with SET NX for ttl and returns the token that owns it.
// Without redis the lock is always granted.
func (c *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if c == nil {
		return "", true, nil
	}
	token = uuid.NewString()
	ok, err = c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return "", ok, err
	}
	return token, true, nil
}

// unlockScript deletes the key only while it still holds our token, so a
// holder whose ttl ran out cannot release the next holder's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (c *Cache) Unlock(ctx context.Context, key, token string) error {
	if c == nil {
		return nil
	}
	return unlockScript.Run(ctx, c.Client, []string{key}, token).Err()
}
