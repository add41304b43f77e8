package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the shared go-redis client from REDIS_URL.
// Accepts both "redis://host:port/db" URLs and bare "host:port" addresses.
func NewRedisClient(cfg *Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		if cfg.Redis.URL == "" {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = &redis.Options{Addr: cfg.Redis.URL}
	}

	return redis.NewClient(opts), nil
}
