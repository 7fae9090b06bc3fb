package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/region-ops-api/pkg/config"
)

// Namespace prefixes every key written by this service.
const Namespace = "regionops"

// NewRedis returns a configured Redis client.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins parts into a namespaced cache key, e.g. regionops:performance:region:42.
func Key(parts ...string) string {
	return Namespace + ":" + strings.Join(parts, ":")
}

// Pattern returns a SCAN/DEL pattern matching every key under the given prefix.
func Pattern(parts ...string) string {
	return Key(parts...) + "*"
}
