package cache

import (
	"fmt"

	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

// New builds a cache from configuration. A nil Cache (with nil error) means
// caching is disabled.
func New(cfg config.CacheConfig, log *logger.Logger) (Cache, error) {
	ttl := ProfileTTL(cfg.Profile)
	switch cfg.Type {
	case "memory", "":
		return NewMemoryCache(cfg.Size, ttl), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL, ttl, log)
	case "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
