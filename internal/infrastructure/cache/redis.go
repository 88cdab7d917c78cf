package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/config"
)

// NewClient connects to redis and verifies the connection.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}
