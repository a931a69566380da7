package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type transientEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps options and transients in process memory. Values are
// stored JSON-encoded so callers never share references with the store.
type MemoryStore struct {
	mu         sync.Mutex
	options    map[string][]byte
	transients map[string]transientEntry
	// Now returns the current time; tests move it forward to expire transients.
	Now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		options:    make(map[string][]byte),
		transients: make(map[string]transientEntry),
		Now:        time.Now,
	}
}

func (s *MemoryStore) GetOption(_ context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.options[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("GetOption %s: decode: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) SetOption(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetOption %s: encode: %w", key, err)
	}
	s.mu.Lock()
	s.options[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteOption(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.options, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteOptions(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.options, k)
	}
	return nil
}

func (s *MemoryStore) SetTransient(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetTransient %s: encode: %w", key, err)
	}
	s.mu.Lock()
	s.transients[key] = transientEntry{value: raw, expiresAt: s.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// GetTransient drops the entry as a side effect once it has expired.
func (s *MemoryStore) GetTransient(_ context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	entry, ok := s.transients[key]
	if ok && !s.Now().Before(entry.expiresAt) {
		delete(s.transients, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dest); err != nil {
		return false, fmt.Errorf("GetTransient %s: decode: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) DeleteTransient(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.transients, key)
	s.mu.Unlock()
	return nil
}
