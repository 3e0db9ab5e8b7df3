package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kallisto-osint/osinter/config"
)

// Redis backs the cache with a shared Redis instance so multiple engine
// processes can reuse each other's fetches.
type Redis struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedis connects and pings the configured Redis server.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{
		client: client,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Printf("get %s: %v", key, err)
		return "", false
	}
	return val, true
}

func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Printf("put %s: %v", key, err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
