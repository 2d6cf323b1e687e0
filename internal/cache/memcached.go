package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "weather:"

// maxRelativeExp is the largest expiration memcached treats as relative seconds.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Cache.Get. A memcached miss is (nil, false, nil).
func (c *MemcachedCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, &Error{Op: "get", Backend: "memcached", Err: err}
	}
	item, err := c.client.Get(keyPrefix + key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, &Error{Op: "get", Backend: "memcached", Err: err}
	}
	return json.RawMessage(item.Value), true, nil
}

// Set implements Cache.Set. TTLs outside memcached's relative range are clamped.
func (c *MemcachedCache) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "set", Backend: "memcached", Err: err}
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = int32(DefaultTTL.Seconds())
	}
	err := c.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      value,
		Expiration: expSec,
	})
	if err != nil {
		return &Error{Op: "set", Backend: "memcached", Err: err}
	}
	return nil
}

// Ping checks if every memcached server is reachable.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(); err != nil {
		return &Error{Op: "ping", Backend: "memcached", Err: err}
	}
	return nil
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
