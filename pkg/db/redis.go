package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace/pkg/config"
)

// OpenRedis returns a connected client, or nil when Redis is not configured or not
// reachable. Callers degrade by disabling the features that need it.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
