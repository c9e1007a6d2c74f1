package store

import (
	"context"
	"sync"
	"time"
)

type payloadEntry struct {
	contentType string
	body        []byte
	expiresAt   time.Time
}

type memoryStore struct {
	breakers    map[string]BreakerState
	payloads    map[string]payloadEntry
	mutex       sync.RWMutex
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory resolve store.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		breakers:    make(map[string]BreakerState),
		payloads:    make(map[string]payloadEntry),
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) cleanupExpired() {
	now := time.Now()
	s.mutex.Lock()
	for key, entry := range s.payloads {
		if now.After(entry.expiresAt) {
			delete(s.payloads, key)
		}
	}
	for tier, state := range s.breakers {
		if now.After(state.BlockedUntil) {
			delete(s.breakers, tier)
		}
	}
	s.mutex.Unlock()
}

func (s *memoryStore) GetBreaker(_ context.Context, tier string) (BreakerState, bool, error) {
	s.mutex.RLock()
	state, ok := s.breakers[tier]
	s.mutex.RUnlock()
	return state, ok, nil
}

func (s *memoryStore) SetBreaker(_ context.Context, tier string, state BreakerState) error {
	s.mutex.Lock()
	s.breakers[tier] = state
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) ClearBreaker(_ context.Context, tier string) error {
	s.mutex.Lock()
	delete(s.breakers, tier)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) GetPayload(_ context.Context, key string) (string, []byte, bool) {
	s.mutex.RLock()
	entry, ok := s.payloads[key]
	s.mutex.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return "", nil, false
	}
	return entry.contentType, entry.body, true
}

func (s *memoryStore) SetPayload(_ context.Context, key, contentType string, body []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	copied := make([]byte, len(body))
	copy(copied, body)

	s.mutex.Lock()
	s.payloads[key] = payloadEntry{
		contentType: contentType,
		body:        copied,
		expiresAt:   time.Now().Add(ttl),
	}
	s.mutex.Unlock()
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]any{
		"type":     "memory",
		"breakers": len(s.breakers),
		"payloads": len(s.payloads),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
