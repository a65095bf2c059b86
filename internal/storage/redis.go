package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 3 * time.Second

// Redis keeps all items in one hash, so Clear only has to drop that key.
type Redis struct {
	rdb     redis.UniversalClient
	hash    string
	timeout time.Duration
}

func NewRedis(rdb redis.UniversalClient, hash string, timeout time.Duration) *Redis {
	if hash == "" {
		hash = "console:storage"
	}
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return &Redis{rdb: rdb, hash: hash, timeout: timeout}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Redis) GetItem(key string) (string, bool, error) {
	ctx, cncl := r.ctx()
	defer cncl()

	v, err := r.rdb.HGet(ctx, r.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s failed: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) SetItem(key, value string) error {
	ctx, cncl := r.ctx()
	defer cncl()

	if err := r.rdb.HSet(ctx, r.hash, key, value).Err(); err != nil {
		return fmt.Errorf("writing %s failed: %w", key, err)
	}
	return nil
}

func (r *Redis) RemoveItem(key string) error {
	ctx, cncl := r.ctx()
	defer cncl()

	if err := r.rdb.HDel(ctx, r.hash, key).Err(); err != nil {
		return fmt.Errorf("removing %s failed: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear() error {
	ctx, cncl := r.ctx()
	defer cncl()

	if err := r.rdb.Del(ctx, r.hash).Err(); err != nil {
		return fmt.Errorf("clearing %s failed: %w", r.hash, err)
	}
	return nil
}
