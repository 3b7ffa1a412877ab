package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNil is returned by Get when the key does not exist
var ErrNil = redis.Nil

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisClient wraps a go-redis client with the few commands the app needs
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects lazily; call Ping to verify reachability
func NewRedisClient(opts Options) *RedisClient {
	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisClient{client: client}
}

func (r *RedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping checks the connection, used by the health checker
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// IsNil reports whether err means "key not found"
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
