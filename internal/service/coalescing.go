package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-cache-service/internal/models"
)

// inFlightCall is one upstream load that several callers may wait on.
type inFlightCall struct {
	done   chan struct{}
	result models.Result
	err    error
}

// requestCoalescer collapses concurrent misses for the same key into one load.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightCall
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightCall),
		timeout:  timeout,
	}
}

// GetOrDo starts fn for key unless a call is already in flight, then waits for the
// result. shared is true when the caller joined an existing call. fn runs in its own
// goroutine and is not canceled when a waiter gives up.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.Result, error)) (result models.Result, shared bool, err error) {
	rc.mu.Lock()
	call, shared := rc.inFlight[key]
	if !shared {
		call = &inFlightCall{done: make(chan struct{})}
		rc.inFlight[key] = call
		go func() {
			call.result, call.err = fn()
			rc.mu.Lock()
			delete(rc.inFlight, key)
			rc.mu.Unlock()
			close(call.done)
		}()
	}
	rc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-call.done:
		return call.result, shared, call.err
	case <-waitCtx.Done():
		return models.Result{}, shared, waitCtx.Err()
	}
}
