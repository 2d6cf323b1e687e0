package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
	"github.com/kjstillabower/weather-cache-service/internal/traffic"
	"github.com/kjstillabower/weather-cache-service/internal/validation"
)

// WeatherService is the read-through fetcher the handlers delegate to.
type WeatherService interface {
	GetWeather(ctx context.Context, city string) (models.Result, error)
	GetForecast(ctx context.Context, city string) (models.Result, error)
	GetForecastElements(ctx context.Context, city string, fields []string) (models.Result, error)
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	ErrorWindow  time.Duration
	ErrorRatePct int // 0 disables the error rate check
	// CachePing, when set, is called to check cache reachability.
	CachePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   WeatherService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	cityMaxLength    int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. cityMaxLength <= 0 uses validation.DefaultCityMaxLength.
func NewHandler(weatherService WeatherService, healthConfig *HealthConfig, logger *zap.Logger, cityMaxLength int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		healthConfig:   healthConfig,
		logger:         logger,
		cityMaxLength:  cityMaxLength,
	}
}

// GetWeather handles GET /weather/{city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, city string) (models.Result, error) {
		return h.weatherService.GetWeather(ctx, city)
	})
}

// GetForecast handles GET /forecast/{city}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, city string) (models.Result, error) {
		return h.weatherService.GetForecast(ctx, city)
	})
}

// GetForecastElements handles GET /forecast/{city}/elements. The elements query
// parameter may repeat and each value may hold a comma-separated list.
func (h *Handler) GetForecastElements(w http.ResponseWriter, r *http.Request) {
	fields := r.URL.Query()["elements"]
	h.serve(w, r, func(ctx context.Context, city string) (models.Result, error) {
		return h.weatherService.GetForecastElements(ctx, city, fields)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) (models.Result, error)) {
	city := mux.Vars(r)["city"]
	if err := validation.ValidateCity(city, h.cityMaxLength); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid city: "+err.Error())
		return
	}

	result, err := fetch(r.Context(), city)
	if err != nil {
		status := writeServiceError(w, r, h.logger, err)
		if status >= http.StatusInternalServerError {
			traffic.RecordError()
		}
		return
	}
	traffic.RecordSuccess()
	writeRaw(w, result.Status, result.Body)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    result.checks,
		"uptime":    lifecycle.Uptime().Truncate(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, cache reachability, then the
// recent upstream error rate. The first failing condition decides the status.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := map[string]string{"weatherApi": "healthy"}
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", checks}
	}

	if h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(ctx); err != nil {
			checks["cache"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable", checks}
		}
		checks["cache"] = "healthy"
	}

	if h.healthConfig.ErrorWindow > 0 && h.healthConfig.ErrorRatePct > 0 {
		errCount, total := traffic.ErrorRate(h.healthConfig.ErrorWindow)
		if total > 0 && errCount*100 >= h.healthConfig.ErrorRatePct*total {
			checks["weatherApi"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
		}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

// errorResponse is the body of every non-2xx response this service produces.
type errorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// writeRaw writes an already-encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body, adding the correlation ID when present.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		Status:    "error",
		Message:   message,
		RequestID: observability.CorrelationID(r.Context()),
	})
}

// writeServiceError translates a fetch failure into a response and returns the status
// written. The client layer has already logged upstream failures at error level.
func writeServiceError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) int {
	status, message := errorStatus(err)
	writeError(w, r, status, message)
	observability.LoggerFromContext(r.Context(), fallback).Debug("request failed",
		zap.Int("status", status), zap.Error(err))
	return status
}

// errorStatus maps the error taxonomy onto an HTTP status and caller-facing message.
// Upstream failures keep the upstream's own status code and body.
func errorStatus(err error) (int, string) {
	var upErr *client.Error
	isClientErr := errors.As(err, &upErr)

	switch {
	case isClientErr && upErr.Kind == client.KindHTTPStatus:
		status := upErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, fmt.Sprintf("External service error: %d - %s", upErr.StatusCode, upErr.Body)
	case errors.Is(err, cache.ErrCache):
		return http.StatusServiceUnavailable, "Cache unavailable"
	case isClientErr && upErr.Kind == client.KindTimeout, errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "External service timeout"
	case isClientErr && upErr.Kind == client.KindConnection:
		return http.StatusBadGateway, "External service unreachable"
	default:
		return http.StatusBadGateway, "External service error"
	}
}
