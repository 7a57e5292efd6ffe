package config

// Redis backs the token bucket rate limiter and the event catalogue
// response cache.  Both degrade to pass-through when no client is
// available, so a Redis outage never blocks bookings.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions builds client options from the environment:
//
//	REDIS_ADDR (host:port) or REDIS_HOST + REDIS_PORT, default localhost:6379
//	REDIS_PASSWORD, REDIS_DB (default 0), REDIS_TLS
func RedisOptions() *redis.Options {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects and pings Redis.  It returns nil when REDIS_ENABLED
// is false or the server cannot be reached.
func NewRedisClient(log *zap.Logger) *redis.Client {
	if !envBool("REDIS_ENABLED", true) {
		return nil
	}
	opts := RedisOptions()
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, cache and rate limit disabled", zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	log.Info("redis connected", zap.String("addr", opts.Addr))
	return client
}
