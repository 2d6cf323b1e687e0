package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores the payload and Get returns
// the same bytes.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := json.RawMessage(`{"resolvedAddress":"London","days":[]}`)
	if err := c.Set(ctx, "current:abc", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "current:abc")
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

// TestInMemoryCache_Set_CopiesValue verifies that mutating the caller's slice after
// Set does not change the stored payload.
func TestInMemoryCache_Set_CopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := json.RawMessage(`{"a":1}`)
	_ = c.Set(ctx, "k", val, time.Minute)
	val[5] = '2'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != `{"a":1}` {
		t.Errorf("Get() = %s, want {\"a\":1}", got)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false for an unknown key.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false once the TTL has
// elapsed and evicts the entry.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", json.RawMessage(`{}`), DefaultTTL); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(DefaultTTL - time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("Get() before expiry ok = false, want true")
	}

	now = now.Add(2 * time.Second)
	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired access", c.Len())
	}
}

// TestInMemoryCache_CanceledContext verifies that a canceled context surfaces as ErrCache.
func TestInMemoryCache_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewInMemoryCache()

	_, _, err := c.Get(ctx, "k")
	if !errors.Is(err, ErrCache) {
		t.Errorf("Get() error = %v, want ErrCache", err)
	}
	if err := c.Set(ctx, "k", json.RawMessage(`{}`), time.Minute); !errors.Is(err, ErrCache) {
		t.Errorf("Set() error = %v, want ErrCache", err)
	}
}

// TestInMemoryCache_Concurrent exercises parallel Get/Set under the race detector.
func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, "k", json.RawMessage(`{}`), time.Minute)
				_, _, _ = c.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()
}

func TestError_UnwrapAndIs(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := error(&Error{Op: "get", Backend: "redis", Err: inner})

	if !errors.Is(err, ErrCache) {
		t.Error("errors.Is(err, ErrCache) = false, want true")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(err, inner) = false, want true")
	}
	if got, want := err.Error(), "cache get (redis): dial tcp: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
