package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// ErrorKind is the classified outcome of a failed upstream call. Values are stable
// metric labels.
type ErrorKind string

const (
	KindHTTPStatus ErrorKind = "http_status"
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "timeout"
	KindRequest    ErrorKind = "request"
	KindUnknown    ErrorKind = "unknown"
)

var (
	// ErrUpstream matches errors where the provider answered with a non-2xx status.
	ErrUpstream = errors.New("upstream error")
	// ErrTransport matches errors where the call did not complete (connection or timeout).
	ErrTransport = errors.New("transport error")

	errInvalidBody = errors.New("response body is not valid JSON")
)

// Error is the single error type returned by the client. StatusCode and Body are
// set only for KindHTTPStatus.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrUpstream for http_status and ErrTransport for connection and timeout.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return e.Kind == KindHTTPStatus
	case ErrTransport:
		return e.Kind == KindConnection || e.Kind == KindTimeout
	}
	return false
}

// CategorizeError maps an error to its ErrorKind. nil maps to "".
// Order matters: timeouts are checked before connection errors because a dial
// timeout is both.
func CategorizeError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.Kind != "" {
		return clientErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindConnection
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindConnection
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnection
	}

	var urlErr *url.Error
	if errors.Is(err, context.Canceled) || errors.As(err, &urlErr) {
		return KindRequest
	}

	return KindUnknown
}

// classify runs call once and turns any failure into an *Error. Every failure is
// logged exactly once at error level before being returned.
func classify(ctx context.Context, fallback *zap.Logger, city string, call func() (models.Result, error)) (models.Result, error) {
	result, err := call()
	if err == nil {
		return result, nil
	}

	var classified *Error
	if !errors.As(err, &classified) {
		classified = &Error{Kind: CategorizeError(err), Err: err}
	}
	observability.WeatherAPIErrorsTotal.WithLabelValues(string(classified.Kind)).Inc()

	logger := observability.LoggerFromContext(ctx, fallback)
	fields := []zap.Field{
		zap.String("city", city),
		zap.String("kind", string(classified.Kind)),
		zap.Error(classified),
	}
	if classified.Kind == KindHTTPStatus {
		fields = append(fields, zap.Int("status_code", classified.StatusCode))
	}
	logger.Error("upstream request failed", fields...)

	return models.Result{}, classified
}
