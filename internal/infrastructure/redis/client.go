package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/infrastructure/connect"
)

// NewClient creates a new Redis client and checks that the server answers.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	return NewClientWithRetry(ctx, redisURL, zerolog.Nop(), time.Second)
}

// NewClientWithRetry creates a Redis client, pinging it with backoff for up
// to maxElapsed before giving up.
func NewClientWithRetry(ctx context.Context, redisURL string, logger zerolog.Logger, maxElapsed time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = connect.Retry(ctx, logger, "redis", maxElapsed, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
