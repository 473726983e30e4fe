// Package lock provides Guard implementations shared across engine processes.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "deskflow:execution:lock:"
	defaultLeaseTTL  = 10 * time.Minute
)

// RedisGuard claims execution ids with SET NX leases so that two workers never walk the same execution.
// A lease expires after its TTL when the holder dies without releasing it.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	owner  string
	logger *slog.Logger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Owner is stored as the lease value; it is usually the worker id.
	Owner    string
	LeaseTTL time.Duration
	Prefix   string
}

// NewRedisGuard connects to redis and checks the connection.
func NewRedisGuard(ctx context.Context, logger *slog.Logger, opts RedisOptions) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisGuardWithClient(client, logger, opts), nil
}

// NewRedisGuardWithClient wraps an existing client.
func NewRedisGuardWithClient(client redis.UniversalClient, logger *slog.Logger, opts RedisOptions) *RedisGuard {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}

	if opts.Prefix == "" {
		opts.Prefix = defaultKeyPrefix
	}

	if opts.Owner == "" {
		opts.Owner = "deskflow"
	}

	return &RedisGuard{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.LeaseTTL,
		owner:  opts.Owner,
		logger: logger.With("module", "redis_guard"),
	}
}

func (g *RedisGuard) key(executionID string) string {
	return g.prefix + executionID
}

// Acquire takes the lease for executionID.
func (g *RedisGuard) Acquire(ctx context.Context, executionID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(executionID), g.owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease for execution %s: %w", executionID, err)
	}

	if !ok {
		g.logger.DebugContext(ctx, "Execution lease already held", "execution_id", executionID)
	}

	return ok, nil
}

// releaseScript deletes the lease only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release drops the lease. Releasing a lease held by another owner is a no-op.
func (g *RedisGuard) Release(ctx context.Context, executionID string) error {
	err := releaseScript.Run(ctx, g.client, []string{g.key(executionID)}, g.owner).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease for execution %s: %w", executionID, err)
	}

	return nil
}

// Held reports whether any owner currently holds the lease.
func (g *RedisGuard) Held(ctx context.Context, executionID string) (bool, error) {
	n, err := g.client.Exists(ctx, g.key(executionID)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
