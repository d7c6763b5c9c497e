package cache

import (
	"context"
	"strings"
	"time"
)

// Store keeps treatment advice keyed by (disease, severity).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, advice string) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Key normalises a (disease, severity) pair into a cache key.
func Key(disease, severity string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), "_")
	}
	return norm(disease) + "|" + norm(severity)
}
