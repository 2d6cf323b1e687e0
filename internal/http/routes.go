package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// NewRouter registers the weather, forecast, health and metrics routes. requestTimeout
// bounds the weather and forecast routes only.
func NewRouter(h *Handler, logger *zap.Logger, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	weather := router.NewRoute().Subrouter()
	weather.Use(TimeoutMiddleware(requestTimeout))
	weather.HandleFunc("/weather/{city}", h.GetWeather).Methods(http.MethodGet)
	weather.HandleFunc("/forecast/{city}", h.GetForecast).Methods(http.MethodGet)
	weather.HandleFunc("/forecast/{city}/elements", h.GetForecastElements).Methods(http.MethodGet)
	return router
}
