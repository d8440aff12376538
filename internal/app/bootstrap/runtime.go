package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/medtrack/internal/config"
	"github.com/wolfman30/medtrack/internal/session"
	"github.com/wolfman30/medtrack/pkg/logging"
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

// BuildSessionStore selects where session data lives. The redis backend fails
// hard when Redis cannot be reached; silently falling back would log every
// user out on the next restart.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis session store unavailable at %q", cfg.RedisAddr)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
		return session.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}

// SessionConfig derives cookie settings from the app config.
func SessionConfig(cfg *appconfig.Config) session.Config {
	return session.Config{
		Secret:     cfg.SecretKey,
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
	}
}
