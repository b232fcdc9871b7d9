package dedup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"SelfLetter/internal/config"
	"SelfLetter/internal/ports"
)

const defaultKey = "selfletter:seen"

// setCommands is the part of the Redis client the index uses.
type setCommands interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisIndex keeps summarized source URLs in a Redis set.
type RedisIndex struct {
	client setCommands
	key    string
	closer io.Closer
}

var _ ports.SeenIndex = (*RedisIndex)(nil)

// NewRedisIndex connects and pings the server.
func NewRedisIndex(ctx context.Context, cfg config.RedisConfig) (*RedisIndex, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	index := newRedisIndex(rdb, cfg.Key)
	index.closer = rdb
	return index, nil
}

func newRedisIndex(client setCommands, key string) *RedisIndex {
	if key == "" {
		key = defaultKey
	}
	return &RedisIndex{client: client, key: key}
}

// Seen reports set membership.
func (r *RedisIndex) Seen(ctx context.Context, sourceURL string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, sourceURL).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Remember adds the URL to the set.
func (r *RedisIndex) Remember(ctx context.Context, sourceURL string) error {
	if err := r.client.SAdd(ctx, r.key, sourceURL).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisIndex) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
