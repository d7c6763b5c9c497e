package cache

import (
	"fmt"
	"strings"
)

// Driver identifiers supported by the advice cache.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// New creates an advice cache based on the provided configuration.
func New(cfg Config) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverNone:
		return NewNone(), nil
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported advice cache driver: %s", driver)
	}
}
