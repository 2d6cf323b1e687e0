//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	CacheBackend   string // "in_memory", "redis" or "memcached"
	RedisURL       string
	MemcachedAddrs string
}

// GetIntegrationConfig loads integration test configuration from the environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         getenv("WEATHER_API_URL", client.DefaultBaseURL),
		CacheBackend:   getenv("INTEGRATION_CACHE_BACKEND", "in_memory"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
		MemcachedAddrs: getenv("MEMCACHED_ADDRS", "localhost:11211"),
	}
}

// SetupIntegrationCache returns the configured backend, falling back to in-memory when
// the server is unreachable, and a cleanup function.
func SetupIntegrationCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, time.Second)
		if err == nil {
			t.Logf("using redis cache at %s", cfg.RedisURL)
			return rc, func() { _ = rc.Close() }
		}
		t.Logf("redis not available (%v), using in-memory cache", err)
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, 500*time.Millisecond, 2)
		if err == nil && mc.Ping(ctx) == nil {
			t.Logf("using memcached cache at %s", cfg.MemcachedAddrs)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("memcached not available, using in-memory cache")
	}
	return cache.NewInMemoryCache(), func() {}
}

// SetupIntegrationService creates a WeatherService backed by the live timeline API.
// now fixes the calendar day used in cache keys so tests do not collide across runs.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig, now func() time.Time) (*service.WeatherService, cache.Cache, func()) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	weatherClient, err := client.NewTimelineClient(cfg.APIKey, cfg.APIURL, client.DefaultTimeout, logger)
	if err != nil {
		t.Fatalf("NewTimelineClient() error = %v", err)
	}
	store, cleanup := SetupIntegrationCache(t, cfg)
	return service.NewWeatherService(weatherClient, store, logger, service.Config{Now: now}), store, cleanup
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
