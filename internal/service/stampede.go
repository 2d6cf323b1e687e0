package service

import "sync"

// missTracker counts cache misses in progress per key. A count above one means
// concurrent requests are each about to call upstream for the same key.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// Begin records a miss for key and returns the number of misses now in progress.
// Callers must defer End(key).
func (mt *missTracker) Begin(key string) int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.active[key]++
	return mt.active[key]
}

// End marks a miss for key as resolved.
func (mt *missTracker) End(key string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.active[key] <= 1 {
		delete(mt.active, key)
		return
	}
	mt.active[key]--
}
