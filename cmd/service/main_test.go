package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/config"
)

func TestNewCache_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    interface{}
		wantErr bool
	}{
		{"in_memory", config.Config{CacheBackend: config.BackendInMemory}, &cache.InMemoryCache{}, false},
		{"memcached", config.Config{CacheBackend: config.BackendMemcached, MemcachedAddrs: "localhost:11211"}, &cache.MemcachedCache{}, false},
		{"redis bad url", config.Config{CacheBackend: config.BackendRedis, RedisURL: "not-a-url"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			store, closeFn, err := newCache(ctx, &tt.cfg, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("newCache() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("newCache() error = %v", err)
			}
			defer func() { _ = closeFn() }()
			switch tt.want.(type) {
			case *cache.InMemoryCache:
				if _, ok := store.(*cache.InMemoryCache); !ok {
					t.Errorf("newCache() = %T, want *cache.InMemoryCache", store)
				}
			case *cache.MemcachedCache:
				if _, ok := store.(*cache.MemcachedCache); !ok {
					t.Errorf("newCache() = %T, want *cache.MemcachedCache", store)
				}
			}
		})
	}
}
