package database

import (
	"context"
	"fmt"
	"time"

	"hospitex_portal/internal/config"
	"hospitex_portal/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis and verifies the connection with PING.
// It returns nil, nil when Redis is not configured.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		utils.LogInfo("Redis not configured, using in-process locks")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", cfg.Address, err)
	}
	utils.LogInfo("Successfully connected to Redis", map[string]interface{}{"address": cfg.Address, "db": cfg.DB})
	return rdb, nil
}
