package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// DefaultBaseURL is the Visual Crossing timeline endpoint.
const DefaultBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 10 * time.Second

// WeatherClient issues timeline requests. Implementations must return *Error on failure.
type WeatherClient interface {
	Timeline(ctx context.Context, req TimelineRequest) (models.Result, error)
}

// TimelineRequest describes one upstream call. Today appends "/today" to the path.
// The API key is added by the client and must not be set in Params.
type TimelineRequest struct {
	City   string
	Today  bool
	Params url.Values
}

// ErrInvalidAPIKey is returned by the constructor when the key is missing or malformed.
var ErrInvalidAPIKey = errors.New("invalid API key")

// TimelineClient calls the timeline API over HTTP.
type TimelineClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewTimelineClient returns a client for baseURL (DefaultBaseURL if empty).
// timeout <= 0 means DefaultTimeout. logger may be nil.
func NewTimelineClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) (*TimelineClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TimelineClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Timeline performs exactly one GET. On 2xx with a JSON body it returns status 200
// and the body bytes unchanged. Every failure is classified and logged once.
func (c *TimelineClient) Timeline(ctx context.Context, req TimelineRequest) (models.Result, error) {
	return classify(ctx, c.logger, req.City, func() (models.Result, error) {
		return c.callAPI(ctx, req)
	})
}

func (c *TimelineClient) callAPI(ctx context.Context, treq TimelineRequest) (models.Result, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, treq)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.Result{}, &Error{Kind: KindRequest, Err: err}
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.Result{}, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Result{}, &Error{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	if readErr != nil {
		return models.Result{}, fmt.Errorf("read response body: %w", readErr)
	}
	if !json.Valid(body) {
		return models.Result{}, &Error{Kind: KindUnknown, Err: errInvalidBody}
	}

	return models.Result{Status: http.StatusOK, Body: json.RawMessage(body)}, nil
}

func (c *TimelineClient) buildRequest(ctx context.Context, treq TimelineRequest) (*http.Request, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(treq.City)
	if treq.Today {
		endpoint += "/today"
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	for k, v := range treq.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("key", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
