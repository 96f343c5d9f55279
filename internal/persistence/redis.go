package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-access/internal/config"
)

// Redis holds the client backing the token revocation list.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and probes it once. An unreachable server is
// logged and tolerated: authenticated requests fail closed until it returns.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	r := &Redis{Client: redis.NewClient(redisOptions(cfg))}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(probeCtx); err != nil {
		logger.Warn("redis unreachable; revocation checks will fail closed",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return r
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return r
}

// redisOptions keeps timeouts short: the revocation lookup sits on the
// request path of every authenticated call.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
