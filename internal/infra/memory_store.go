package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// MemoryStore implements domain.KeyValueStore and domain.SessionBlockList in memory.
// Used by tests and by the host in ephemeral mode.
type MemoryStore struct {
	mu      sync.RWMutex
	areas   map[domain.Area]map[string]json.RawMessage
	blocked []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		areas: make(map[domain.Area]map[string]json.RawMessage),
	}
}

// Get returns stored JSON for the keys that exist.
func (m *MemoryStore) Get(ctx context.Context, area domain.Area, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.areas[area][k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

// Set writes all values atomically.
func (m *MemoryStore) Set(ctx context.Context, area domain.Area, values map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", k, err)
		}
		encoded[k] = b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.areas[area] == nil {
		m.areas[area] = make(map[string]json.RawMessage)
	}
	for k, v := range encoded {
		m.areas[area][k] = v
	}
	return nil
}

// Delete removes keys from area.
func (m *MemoryStore) Delete(ctx context.Context, area domain.Area, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.areas[area], k)
	}
	return nil
}

// Add records url. Idempotent.
func (m *MemoryStore) Add(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.blocked {
		if u == url {
			return nil
		}
	}
	m.blocked = append(m.blocked, url)
	return nil
}

// Has reports whether url is session-blocked.
func (m *MemoryStore) Has(ctx context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.blocked {
		if u == url {
			return true, nil
		}
	}
	return false, nil
}

// List returns session-blocked URLs in the order they were blocked.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.blocked...), nil
}

// Ensure MemoryStore implements both interfaces.
var _ domain.KeyValueStore = (*MemoryStore)(nil)
var _ domain.SessionBlockList = (*MemoryStore)(nil)
