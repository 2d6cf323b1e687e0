package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// Config tunes a WeatherService. The zero value is usable.
type Config struct {
	// TTL applied to cached payloads. Zero means cache.DefaultTTL.
	TTL time.Duration
	// CoalesceTimeout > 0 enables request coalescing: concurrent misses for the same
	// key share one upstream call, and each waiter gives up after this long.
	CoalesceTimeout time.Duration
	// Now supplies the calendar date for cache keys. Defaults to time.Now.
	Now func() time.Time
}

// WeatherService serves current weather and forecasts through a daily read-through
// cache in front of the timeline API. It holds no per-request state.
type WeatherService struct {
	client      client.WeatherClient
	cache       cache.Cache
	logger      *zap.Logger
	ttl         time.Duration
	now         func() time.Time
	missTracker *missTracker
	coalescer   *requestCoalescer // nil if disabled
}

// NewWeatherService creates a WeatherService. logger may be nil.
func NewWeatherService(client client.WeatherClient, cache cache.Cache, logger *zap.Logger, cfg Config) *WeatherService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var coalescer *requestCoalescer
	if cfg.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(cfg.CoalesceTimeout)
	}
	return &WeatherService{
		client:      client,
		cache:       cache,
		logger:      logger,
		ttl:         cfg.TTL,
		now:         cfg.Now,
		missTracker: newMissTracker(),
		coalescer:   coalescer,
	}
}

const defaultTTL = cache.DefaultTTL

// GetWeather returns today's current conditions for city.
func (s *WeatherService) GetWeather(ctx context.Context, city string) (models.Result, error) {
	params := url.Values{}
	params.Set("include", "current")
	params.Set("unitGroup", "metric")

	key := cache.Key(models.OperationCurrent, city, s.today())
	return s.fetch(ctx, models.OperationCurrent, key, client.TimelineRequest{City: city, Today: true, Params: params})
}

// GetForecast returns the full multi-day forecast for city.
func (s *WeatherService) GetForecast(ctx context.Context, city string) (models.Result, error) {
	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("include", "fcst")

	key := cache.Key(models.OperationForecast, city, s.today())
	return s.fetch(ctx, models.OperationForecast, key, client.TimelineRequest{City: city, Params: params})
}

// GetForecastElements returns the forecast for city restricted to the given elements.
// See NormalizeFields for how fields are interpreted; an empty selection is unrestricted.
func (s *WeatherService) GetForecastElements(ctx context.Context, city string, fields []string) (models.Result, error) {
	elements := NormalizeFields(fields)

	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("include", "obs,fcst")
	params.Set("elements", elements)

	key := cache.Key(models.OperationForecastElements, city, s.today(), elements)
	return s.fetch(ctx, models.OperationForecastElements, key, client.TimelineRequest{City: city, Params: params})
}

func (s *WeatherService) today() time.Time {
	return s.now().UTC()
}

// fetch is the read-through sequence shared by every operation: cache get, then on
// miss one upstream call and one cache write. A cache failure fails the request.
func (s *WeatherService) fetch(ctx context.Context, op models.Operation, key string, req client.TimelineRequest) (models.Result, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, s.logger).With(
		zap.String("operation", string(op)),
		zap.String("city", req.City),
		zap.String("cache_key", key),
	)
	opLabel := string(op)
	observability.RecordWeatherQuery(opLabel, req.City)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		err = asCacheError("get", err)
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		logger.Error("cache get failed", zap.Error(err))
		return models.Result{}, fmt.Errorf("%s for %s: %w", op, req.City, err)
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
	if ok {
		observability.CacheHitsTotal.WithLabelValues(opLabel).Inc()
		logger.Debug("weather served", zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return models.Result{Status: http.StatusOK, Body: cached}, nil
	}
	observability.CacheMissesTotal.WithLabelValues(opLabel).Inc()

	if concurrent := s.missTracker.Begin(key); concurrent > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(opLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(opLabel).Observe(float64(concurrent))
	}
	defer s.missTracker.End(key)

	logger.Debug("cache miss, fetching upstream")

	// The upstream call and write-back outlive a dropped caller; the client timeout bounds them.
	loadCtx := context.WithoutCancel(ctx)
	load := func() (models.Result, error) {
		return s.load(loadCtx, logger, key, req)
	}

	var result models.Result
	if s.coalescer != nil {
		var shared bool
		result, shared, err = s.coalescer.GetOrDo(ctx, key, load)
		if shared && err == nil {
			observability.RequestCoalescingHitsTotal.WithLabelValues(opLabel).Inc()
		}
	} else {
		result, err = load()
	}
	if err != nil {
		return models.Result{}, fmt.Errorf("%s for %s: %w", op, req.City, err)
	}

	logger.Debug("weather served", zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return result, nil
}

// load performs the upstream call and, on success, the single cache write.
func (s *WeatherService) load(ctx context.Context, logger *zap.Logger, key string, req client.TimelineRequest) (models.Result, error) {
	result, err := s.client.Timeline(ctx, req)
	if err != nil {
		return models.Result{}, err
	}

	setStart := time.Now()
	if err := s.cache.Set(ctx, key, result.Body, s.ttl); err != nil {
		err = asCacheError("set", err)
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		logger.Error("cache set failed", zap.Error(err))
		return models.Result{}, err
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())

	return models.Result{Status: http.StatusOK, Body: result.Body}, nil
}

// asCacheError guarantees cache failures match cache.ErrCache even when a Cache
// implementation returns plain errors.
func asCacheError(op string, err error) error {
	if errors.Is(err, cache.ErrCache) {
		return err
	}
	return &cache.Error{Op: op, Backend: "unknown", Err: err}
}
