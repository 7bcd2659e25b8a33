package breaker

import (
	"testing"
	"time"
)

func TestOpensAtThreshold(t *testing.T) {
	b := New(Config{Threshold: 3, Cooldown: time.Hour})

	if b.RecordFailure() {
		t.Fatalf("should not open after 1 failure")
	}
	if b.RecordFailure() {
		t.Fatalf("should not open after 2 failures")
	}
	if b.IsOpen() {
		t.Fatalf("should still be closed below threshold")
	}
	if !b.RecordFailure() {
		t.Fatalf("third failure should open the breaker")
	}
	if !b.IsOpen() {
		t.Fatalf("breaker should be open")
	}
	// further failures while open are not "just opened"
	if b.RecordFailure() {
		t.Fatalf("already-open breaker should not report opening again")
	}
}

func TestSuccessResetsCount(t *testing.T) {
	b := New(Config{Threshold: 3, Cooldown: time.Hour})
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.IsOpen() {
		t.Fatalf("non-consecutive failures must not open the breaker")
	}
	if b.Failures() != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", b.Failures())
	}
}

func TestExplicitReset(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: time.Hour})
	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatalf("should be open")
	}
	b.Reset()
	if b.IsOpen() {
		t.Fatalf("Reset should close the breaker")
	}
	if b.Failures() != 0 {
		t.Fatalf("Reset should clear failures")
	}
}

func TestHalfOpenProbe(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatalf("should be open before cooldown")
	}

	// cooldown elapses: one probe is let through
	now = now.Add(2 * time.Minute)
	if b.IsOpen() {
		t.Fatalf("cooldown elapsed; probe should be allowed")
	}

	// probe succeeds -> fully closed
	if !b.RecordSuccess() {
		t.Fatalf("success in half-open should report recovery")
	}
	if b.IsOpen() {
		t.Fatalf("should be closed after successful probe")
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Minute)
	if b.IsOpen() {
		t.Fatalf("probe should be allowed")
	}
	if !b.RecordFailure() {
		t.Fatalf("failed probe should reopen immediately")
	}
	if !b.IsOpen() {
		t.Fatalf("should be open again after failed probe")
	}
}

// Only the caller that flips the breaker to half-open gets through; everyone
// else is held back until the probe reports.
func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	b := New(Config{Threshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Minute)

	if b.IsOpen() {
		t.Fatalf("first caller after cooldown should be admitted as the probe")
	}
	if !b.IsOpen() {
		t.Fatalf("second caller must wait for the outstanding probe")
	}
	if !b.IsOpen() {
		t.Fatalf("every later caller must wait for the outstanding probe")
	}

	b.RecordSuccess()
	if b.IsOpen() {
		t.Fatalf("successful probe should close the breaker for everyone")
	}

	// a failed probe reopens and arms a fresh cooldown before the next one
	b.RecordFailure()
	now = now.Add(2 * time.Minute)
	if b.IsOpen() {
		t.Fatalf("next probe should be admitted after the new cooldown")
	}
	if !b.RecordFailure() {
		t.Fatalf("failed probe should reopen")
	}
	if !b.IsOpen() {
		t.Fatalf("callers must be held back right after a failed probe")
	}
}

func TestDefaults(t *testing.T) {
	b := New(Config{})
	if b.threshold != DefaultThreshold || b.cooldown != DefaultCooldown {
		t.Fatalf("zero config should pick defaults, got %d/%v", b.threshold, b.cooldown)
	}
}
