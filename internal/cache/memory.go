package cache

import (
	"sync"

	"cellpulse/internal/dataprocessing"
)

// memoryTier is the bounded in-process tier. Eviction is strictly by
// insertion order: reads never refresh an entry's position, and updating an
// existing key keeps its original slot. With the default capacity of five
// the tier holds the five most recently inserted tables, not the most
// recently used ones.
type memoryTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*dataprocessing.Table
	order    []string
}

func newMemoryTier(capacity int) *memoryTier {
	return &memoryTier{
		capacity: capacity,
		entries:  make(map[string]*dataprocessing.Table),
	}
}

// get returns the cached table for key. The caller must not mutate the
// returned table; the store clones before handing tables out.
func (m *memoryTier) get(key string) (*dataprocessing.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[key]
	return t, ok
}

// put inserts or replaces an entry, evicting the oldest-inserted key when
// the tier is full. It returns the evicted key, if any.
func (m *memoryTier) put(key string, t *dataprocessing.Table) (evicted string, didEvict bool) {
	if m.capacity <= 0 {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		m.entries[key] = t
		return "", false
	}

	if len(m.order) >= m.capacity {
		evicted = m.order[0]
		m.order = m.order[1:]
		delete(m.entries, evicted)
		didEvict = true
	}

	m.entries[key] = t
	m.order = append(m.order, key)
	return evicted, didEvict
}

// remove deletes an entry if present.
func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// len returns the number of resident entries.
func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// clear drops every resident entry.
func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*dataprocessing.Table)
	m.order = nil
}
