package breaker

import (
	"testing"
	"time"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	if b.IsTripped() {
		t.Fatal("fresh breaker should not be tripped")
	}

	b.RecordFailure()
	if b.IsTripped() {
		t.Fatal("should not trip below threshold")
	}

	b.RecordFailure()
	if !b.IsTripped() {
		t.Fatal("should trip at threshold")
	}
}

func TestBreaker_ResetsAfterCooldown(t *testing.T) {
	b := New(1, 20*time.Millisecond)
	b.RecordFailure()
	if !b.IsTripped() {
		t.Fatal("should trip immediately at threshold 1")
	}

	time.Sleep(30 * time.Millisecond)
	if b.IsTripped() {
		t.Fatal("should not be tripped after cooldown elapses")
	}
	if b.Failures() != 0 {
		t.Fatalf("failure count should reset after cooldown, got %d", b.Failures())
	}
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := New(3, time.Second)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if b.Failures() != 0 {
		t.Fatalf("expected 0 failures after success, got %d", b.Failures())
	}
	if b.IsTripped() {
		t.Fatal("should not be tripped after success reset")
	}
}
