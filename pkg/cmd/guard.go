package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/deskflow/pkg/lock"
	"github.com/dukex/deskflow/pkg/workflow"
	redis "github.com/redis/go-redis/v9"
)

// NewGuard returns a process-local guard when redisURL is empty and a redis lease guard otherwise.
func NewGuard(ctx context.Context, logger *slog.Logger, redisURL, owner string) (workflow.Guard, error) {
	if redisURL == "" {
		return workflow.NewMemoryGuard(), nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return lock.NewRedisGuardWithClient(client, logger, lock.RedisOptions{Owner: owner}), nil
}
