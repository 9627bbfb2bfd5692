package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"parley/cmd/server/config"
	"parley/internal/chat"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// buildEventLog wires the Redis event log. Redis is optional: without a
// REDIS_URL the gateway runs with no presence tracking or event stream.
func buildEventLog(ctx context.Context) (*chat.RedisEventLog, func(), error) {
	if strings.TrimSpace(os.Getenv("REDIS_URL")) == "" {
		log.Println("REDIS_URL not set, event log disabled")
		return nil, func() {}, nil
	}

	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	events := chat.NewRedisEventLog(redisClientAdapter{client: client}, cfg.Stream, cfg.PresenceTTL, cfg.StreamMaxLen)
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	return events, cleanup, nil
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() chat.RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return p.pipe.HSet(ctx, key, values...)
}

func (p redisPipelineAdapter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return p.pipe.Expire(ctx, key, expiration)
}

func (p redisPipelineAdapter) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	return p.pipe.XAdd(ctx, a)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
