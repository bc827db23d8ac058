package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}
	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 50 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}
}

// TestTimerObserveDurationVec tests labeled histogram observation
func TestTimerObserveDurationVec(t *testing.T) {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_labeled_duration_seconds",
		Help:    "Test labeled duration histogram",
		Buckets: prometheus.DefBuckets,
	}, []string{"file_type"})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	// Must not panic and must record under the label
	timer.ObserveDurationVec(histogram, "image")

	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDurationVec() recorded zero duration")
	}
}
