package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// unreachableAddr returns a loopback address with nothing listening on it.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url", time.Second)
	if err == nil {
		t.Fatal("NewRedisCache() error = nil, want parse error")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "redis://"+unreachableAddr(t)+"/0", 200*time.Millisecond)
	if !errors.Is(err, ErrCache) {
		t.Fatalf("NewRedisCache() error = %v, want ErrCache", err)
	}
}

// TestRedisCache_Unreachable_ReturnsCacheError verifies that an outage surfaces as
// ErrCache on both Get and Set instead of being reported as a miss.
func TestRedisCache_Unreachable_ReturnsCacheError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        unreachableAddr(t),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheFromClient(client)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "current:abc")
	if ok {
		t.Error("Get() ok = true, want false")
	}
	var cacheErr *Error
	if !errors.As(err, &cacheErr) || cacheErr.Op != "get" || cacheErr.Backend != "redis" {
		t.Errorf("Get() error = %v, want *Error{Op: get, Backend: redis}", err)
	}

	if err := c.Set(ctx, "current:abc", json.RawMessage(`{}`), DefaultTTL); !errors.Is(err, ErrCache) {
		t.Errorf("Set() error = %v, want ErrCache", err)
	}
}
