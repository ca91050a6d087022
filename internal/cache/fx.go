package cache

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore selects the cache backend from configuration.
func NewStore(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (Store, error) {
	if cfg.CacheBackend == config.CacheBackendRedis {
		addr := strings.TrimSpace(cfg.RedisAddr)
		if addr == "" {
			return nil, errors.New("redis cache backend requires REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return client.Close()
			},
		})
		return NewRedisStore(client, log), nil
	}

	store := NewMemoryStore(clk)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			store.Close()
			return nil
		},
	})
	return store, nil
}

var Module = fx.Module("cache",
	fx.Provide(NewStore),
)
