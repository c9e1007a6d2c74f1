package store

import "fmt"

// Driver identifiers supported by the resolve domain.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// New creates a resolve store based on the provided configuration.
func New(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported resolve store driver: %s", driver)
	}
}
