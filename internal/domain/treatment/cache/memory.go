package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	advice    string
	expiresAt time.Time
}

type memoryStore struct {
	items       map[string]memoryEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory advice cache with a background sweeper.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]memoryEntry),
		ttl:         ttl,
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
	defer s.mutex.Unlock()
	for k, e := range s.items {
		if now.After(e.expiresAt) {
			delete(s.items, k)
		}
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.RLock()
	e, ok := s.items[key]
	s.mutex.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.advice, true, nil
}

func (s *memoryStore) Set(_ context.Context, key, advice string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.items[key] = memoryEntry{advice: advice, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Stats(context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]any{
		"type":  DriverMemory,
		"total": len(s.items),
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
