package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends accepted by cache.backend / CACHE_BACKEND.
const (
	BackendInMemory  = "in_memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

// CacheTTL is the expiry of every cache entry. cache.ttl may only restate it.
const CacheTTL = 24 * time.Hour

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string // empty selects the client's default endpoint
	WeatherAPITimeout time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string

	RedisURL     string
	RedisTimeout time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	HealthErrorWindow  time.Duration
	HealthErrorRatePct int

	CityMaxLength int

	// TrackedCities get their own metric label; warmed cities are always included.
	TrackedCities []string
	WarmCache     bool
	WarmCities    []string
	WarmInterval  time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
		Redis   struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Coalesce struct {
		Enabled bool   `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"coalesce"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		ErrorWindow  string `yaml:"error_window"`
		ErrorRatePct int    `yaml:"error_rate_pct"`
	} `yaml:"health"`

	Validation struct {
		LocationMaxLength int `yaml:"location_max_length"`
	} `yaml:"validation"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`

	Warm struct {
		Enabled  bool     `yaml:"enabled"`
		Interval string   `yaml:"interval"`
		Cities   []string `yaml:"cities"`
	} `yaml:"warm"`
}

// envOverlay holds the variables that take precedence over the YAML file.
type envOverlay struct {
	EnvName        string `env:"ENV_NAME" envDefault:"dev"`
	WeatherAPIKey  string `env:"WEATHER_API_KEY"`
	WeatherAPIURL  string `env:"WEATHER_API_URL"`
	CacheBackend   string `env:"CACHE_BACKEND"`
	RedisURL       string `env:"REDIS_URL"`
	MemcachedAddrs string `env:"MEMCACHED_ADDRS"`
	ServerPort     string `env:"SERVER_PORT"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads root/.env, then root/config/{ENV_NAME}.yaml (default dev) and
// root/config/secrets.yaml. All three files are optional. Environment variables win over
// the YAML file; the API key falls back to the secrets file.
func LoadFrom(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	ov, err := env.ParseAs[envOverlay]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(root, "config", ov.EnvName+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	cfg.ServerPort = firstNonEmpty(ov.ServerPort, fc.Server.Port, "8080")

	cfg.WeatherAPIKey = strings.TrimSpace(ov.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		key, err := readSecrets(filepath.Join(root, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	cfg.WeatherAPIURL = firstNonEmpty(ov.WeatherAPIURL, fc.WeatherAPI.URL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.CacheTTL = parseDurationOrZero(fc.Cache.TTL, CacheTTL)

	cfg.RedisURL = firstNonEmpty(ov.RedisURL, fc.Cache.Redis.URL)
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)
	cfg.CacheBackend = strings.ToLower(firstNonEmpty(ov.CacheBackend, fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
		if cfg.RedisURL != "" {
			cfg.CacheBackend = BackendRedis
		}
	} else if cfg.CacheBackend == BackendInMemory && ov.CacheBackend == "" && strings.TrimSpace(ov.RedisURL) != "" {
		// An explicit REDIS_URL wins over a file-level in_memory choice.
		cfg.CacheBackend = BackendRedis
	}

	cfg.MemcachedAddrs = firstNonEmpty(ov.MemcachedAddrs, fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CoalesceEnabled = fc.Coalesce.Enabled
	cfg.CoalesceTimeout = parseDuration(fc.Coalesce.Timeout, 0)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 15*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.HealthErrorWindow = parseDuration(fc.Health.ErrorWindow, time.Minute)
	cfg.HealthErrorRatePct = fc.Health.ErrorRatePct
	if cfg.HealthErrorRatePct <= 0 {
		cfg.HealthErrorRatePct = 50
	}

	cfg.CityMaxLength = fc.Validation.LocationMaxLength
	if cfg.CityMaxLength <= 0 {
		cfg.CityMaxLength = 100
	}

	cfg.TrackedCities = fc.Metrics.TrackedCities
	cfg.WarmCache = fc.Warm.Enabled
	cfg.WarmCities = fc.Warm.Cities
	cfg.WarmInterval = parseDuration(fc.Warm.Interval, 0)
	cfg.TrackedCities = mergeCities(cfg.TrackedCities, cfg.WarmCities)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSecrets returns weather_api_key from path, or "" when the file does not exist.
func readSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeCities appends cities from extra not already present in base, keeping order.
func mergeCities(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// parseDuration parses s and returns defaultVal if s is empty, invalid or <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses s, returning defaultVal on empty string or parse error.
// Zero or negative values are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values and raises RequestTimeout above the upstream timeout.
func validate(cfg *Config) error {
	if cfg.WeatherAPIKey == "" {
		return fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.CacheTTL != CacheTTL {
		return fmt.Errorf("cache.ttl must be %s, got %s", CacheTTL, cfg.CacheTTL)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.CoalesceEnabled && cfg.CoalesceTimeout <= 0 {
		cfg.CoalesceTimeout = cfg.RequestTimeout
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendMemcached:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("cache.backend redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("cache.backend must be in_memory, redis or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
