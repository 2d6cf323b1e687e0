package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is the expiry applied to every upstream payload.
const DefaultTTL = 24 * time.Hour

// ErrCache matches any *Error via errors.Is. The store was unreachable or misbehaved.
var ErrCache = errors.New("cache unavailable")

// Cache stores raw upstream JSON payloads under string keys.
// Get returns (payload, true, nil) on hit and (nil, false, nil) on miss or expiry.
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
}

// Pinger is implemented by backends that can report reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Error reports a failed cache operation. Op is "get", "set" or "ping".
type Error struct {
	Op      string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCache) true for every cache failure.
func (e *Error) Is(target error) bool { return target == ErrCache }

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get retrieves the payload for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, &Error{Op: "get", Backend: "in_memory", Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a copy of value with the given TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "set", Backend: "in_memory", Err: err}
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     stored,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Ping always succeeds; the map is in-process.
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
