package models

import "encoding/json"

// Operation names the kind of upstream request. It doubles as the cache key namespace.
type Operation string

const (
	OperationCurrent          Operation = "current"
	OperationForecast         Operation = "forecast"
	OperationForecastElements Operation = "forecast_elements"
)

// Result is what every fetch returns, whether served from cache or upstream.
// Body is the upstream JSON passed through verbatim.
type Result struct {
	Status int
	Body   json.RawMessage
}
