package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// MemoryStore is a process-local Store. Expired entries are dropped on read and
// swept from Set at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, still := m.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	payload := make([]byte, len(value))
	copy(payload, value)

	now := m.now()
	m.mu.Lock()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweepLocked(now)
	}
	m.entries[key] = memoryEntry{payload: payload, expiresAt: now.Add(ttl)}
	m.mu.Unlock()
	return nil
}

// sweepLocked drops every expired entry; m.mu must be held for writing.
func (m *MemoryStore) sweepLocked(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len counts live and not-yet-collected entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
