package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/brickline/realty-leads/internal/config"
	httpmiddleware "github.com/brickline/realty-leads/internal/http/middleware"
	"github.com/brickline/realty-leads/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildIntakeLimiter limits public intake per client IP. With Redis the window
// is shared across instances and the in-process bucket only covers Redis
// outages; without Redis the bucket is used alone. A non-positive rate
// disables limiting and returns nil.
func BuildIntakeLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if cfg == nil || cfg.IntakeRatePerMinute <= 0 {
		return nil
	}
	perMinute := cfg.IntakeRatePerMinute
	local := httpmiddleware.NewTokenBucket(ctx, float64(perMinute)/60, perMinute)
	if redisClient == nil {
		return local
	}
	return &httpmiddleware.FallbackLimiter{
		Primary:   httpmiddleware.NewRedisLimiter(redisClient, "ratelimit:intake", perMinute, time.Minute),
		Secondary: local,
		Logger:    logger,
	}
}
