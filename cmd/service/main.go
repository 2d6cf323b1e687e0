package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/config"
	httphandler "github.com/kjstillabower/weather-cache-service/internal/http"
	"github.com/kjstillabower/weather-cache-service/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
	"github.com/kjstillabower/weather-cache-service/internal/service"
)

// cacheBackend is what every cache implementation offers beyond cache.Cache.
type cacheBackend interface {
	cache.Cache
	cache.Pinger
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewTimelineClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, logger)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	store, closeCache, err := newCache(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("cache", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}

	svcCfg := service.Config{TTL: cfg.CacheTTL}
	if cfg.CoalesceEnabled {
		svcCfg.CoalesceTimeout = cfg.CoalesceTimeout
	}
	weatherService := service.NewWeatherService(weatherClient, store, logger, svcCfg)

	healthConfig := &httphandler.HealthConfig{
		ErrorWindow:  cfg.HealthErrorWindow,
		ErrorRatePct: cfg.HealthErrorRatePct,
		CachePing:    store.Ping,
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger, cfg.CityMaxLength)

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	warmCtx, stopWarm := context.WithCancel(context.Background())
	defer stopWarm()
	if cfg.WarmCache && len(cfg.WarmCities) > 0 {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(warmCtx, cfg.WarmCities, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		} else {
			ctx, cancel := context.WithTimeout(warmCtx, 30*time.Second)
			if err := warmer.Warm(ctx, cfg.WarmCities); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
			cancel()
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, logger, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("cache_backend", cfg.CacheBackend))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopWarm()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := closeCache(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newCache builds the configured backend and returns it with its close function.
func newCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cacheBackend, func() error, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("cache backend: redis")
		return rc, rc.Close, nil
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Close, nil
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), func() error { return nil }, nil
	}
}
