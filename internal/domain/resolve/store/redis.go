package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

type redisPayload struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// NewRedis constructs a redis-backed resolve store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "resolve:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) breakerKey(tier string) string {
	return s.prefix + "breaker:" + tier
}

func (s *redisStore) payloadKey(key string) string {
	return s.prefix + "payload:" + key
}

func (s *redisStore) GetBreaker(ctx context.Context, tier string) (BreakerState, bool, error) {
	raw, err := s.client.Get(ctx, s.breakerKey(tier)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return BreakerState{}, false, nil
		}
		return BreakerState{}, false, err
	}
	var state BreakerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return BreakerState{}, false, err
	}
	return state, true, nil
}

func (s *redisStore) SetBreaker(ctx context.Context, tier string, state BreakerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// 到期后多留一分钟，便于状态查询接口还能看到最后的错误
	expiry := time.Until(state.BlockedUntil) + time.Minute
	if expiry <= 0 {
		expiry = time.Minute
	}
	return s.client.Set(ctx, s.breakerKey(tier), data, expiry).Err()
}

func (s *redisStore) ClearBreaker(ctx context.Context, tier string) error {
	return s.client.Del(ctx, s.breakerKey(tier)).Err()
}

func (s *redisStore) GetPayload(ctx context.Context, key string) (string, []byte, bool) {
	raw, err := s.client.Get(ctx, s.payloadKey(key)).Bytes()
	if err != nil {
		return "", nil, false
	}
	var payload redisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, false
	}
	return payload.ContentType, payload.Body, true
}

func (s *redisStore) SetPayload(ctx context.Context, key, contentType string, body []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(redisPayload{ContentType: contentType, Body: body})
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, s.payloadKey(key), data, ttl).Err()
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "redis",
		"total": size,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
