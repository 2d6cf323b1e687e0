package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back outcomes are kept. Windows longer than this see
// only the last retention of traffic.
const retention = 5 * time.Minute

var defaultTracker = NewTracker()

// RecordSuccess records a request that was answered with weather data.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a request that failed on the upstream or the cache.
func RecordError() {
	defaultTracker.RecordError()
}

// RequestCount returns the number of outcomes within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps sliding windows of request outcome timestamps for the health check.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
}

// NewTracker returns an empty Tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns successes plus errors within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	_, total := t.ErrorRate(window)
	return total
}

// ErrorRate returns (errorCount, totalCount) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
}

// countSince counts timestamps at or after cutoff. times is in ascending order.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && !times[i].Before(cutoff); i-- {
		n++
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
}
