//go:build integration
// +build integration

package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// TestMemcachedCache_GetSet_Integration verifies that MemcachedCache stores and
// returns payloads when a memcached server is available.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	val := json.RawMessage(`{"resolvedAddress":"London"}`)
	if err := c.Set(ctx, "current:integration", val, time.Minute); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}

	got, ok, err := c.Get(ctx, "current:integration")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != string(val) {
		t.Errorf("Get() = %s, want %s", got, val)
	}
}

// TestMemcachedCache_Get_Miss_Integration verifies that a missing key is ok=false.
func TestMemcachedCache_Get_Miss_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Skipf("Get failed (memcached may not be running): %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}
