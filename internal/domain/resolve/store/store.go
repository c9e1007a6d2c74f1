package store

import (
	"context"
	"time"
)

// BreakerState 记录某一层音源的熔断状态。BlockedUntil 为零值表示
// 熔断未打开。
type BreakerState struct {
	BlockedUntil time.Time `json:"blocked_until"`
	LastError    string    `json:"last_error"`
}

// Store 为解析流水线保存熔断状态和封面等小工件的缓存副本。
// 工件缓存是尽力而为的，读写失败都不会向上冒泡。
type Store interface {
	GetBreaker(ctx context.Context, tier string) (BreakerState, bool, error)
	SetBreaker(ctx context.Context, tier string, state BreakerState) error
	ClearBreaker(ctx context.Context, tier string) error
	GetPayload(ctx context.Context, key string) (contentType string, body []byte, ok bool)
	SetPayload(ctx context.Context, key, contentType string, body []byte, ttl time.Duration)
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
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
