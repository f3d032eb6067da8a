package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo caches one computed value under an explicit comparable key. The key is
// the whole cache-invalidation policy: callers derive it from content (a
// formal fingerprint, a version counter) rather than from object identity,
// so the correctness argument does not depend on who holds which pointer.
type Memo[K comparable, V any] struct {
	mu       sync.Mutex
	valid    bool
	key      K
	value    V
	computes atomic.Uint64
}

// Get returns the cached value if key matches the cached key, otherwise runs
// compute and caches the result under key.
func (m *Memo[K, V]) Get(key K, compute func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.key == key {
		return m.value
	}
	m.computes.Add(1)
	m.value = compute()
	m.key = key
	m.valid = true
	return m.value
}

// Invalidate drops the cached value unconditionally.
func (m *Memo[K, V]) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

// Computes returns how many times compute has run. Used to observe
// recomputation behavior in tests.
func (m *Memo[K, V]) Computes() uint64 {
	return m.computes.Load()
}
