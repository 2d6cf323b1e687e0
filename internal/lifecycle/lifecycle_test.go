package lifecycle

import (
	"testing"
	"time"
)

func TestSetShuttingDown(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false")
	}
	SetShuttingDown(true)
	defer SetShuttingDown(false)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
}

func TestUptime(t *testing.T) {
	MarkStarted(time.Now().Add(-time.Minute))
	defer MarkStarted(time.Now())
	if got := Uptime(); got < time.Minute || got > 2*time.Minute {
		t.Errorf("Uptime() = %v, want about 1m", got)
	}
}
