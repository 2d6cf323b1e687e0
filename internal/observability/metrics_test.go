package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that label dimensions match their use in the client,
// http, service and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/weather/{city}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/weather/{city}").Observe(0.01)
	WeatherAPICallsTotal.WithLabelValues("success").Inc()
	WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
	WeatherAPIErrorsTotal.WithLabelValues("timeout").Inc()
	CacheHitsTotal.WithLabelValues("current").Inc()
	CacheMissesTotal.WithLabelValues("forecast").Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
	CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(0.001)
	CacheStampedeDetectedTotal.WithLabelValues("current").Inc()
	CacheStampedeConcurrency.WithLabelValues("current").Observe(2)
	RequestCoalescingHitsTotal.WithLabelValues("forecast_elements").Inc()
}

func TestMetricCityLabel(t *testing.T) {
	SetTrackedCities([]string{"London", " berlin "})
	defer SetTrackedCities(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"London", "london"},
		{"BERLIN", "berlin"},
		{"Paris", "other"},
	}
	for _, tt := range tests {
		if got := MetricCityLabel(tt.in); got != tt.want {
			t.Errorf("MetricCityLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	RecordWeatherQuery("current", "London")
	RecordWeatherQuery("forecast", "Paris")
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// the text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
