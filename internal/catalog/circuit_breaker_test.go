package catalog

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if err := cb.Allow(); err != nil {
			t.Fatalf("Allow() after %d failures = %v, want nil", i+1, err)
		}
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Errorf("State() = %v, want %v", cb.State(), BreakerOpen)
	}
	if err := cb.Allow(); err == nil {
		t.Error("Allow() on open breaker = nil, want error")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != BreakerClosed {
		t.Errorf("State() = %v, want %v", cb.State(), BreakerClosed)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("State() = %v, want %v", cb.State(), BreakerOpen)
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil", err)
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("State() = %v, want %v", cb.State(), BreakerHalfOpen)
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Errorf("State() after recovery = %v, want %v", cb.State(), BreakerClosed)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil", err)
	}
	cb.RecordFailure()

	if cb.State() != BreakerOpen {
		t.Errorf("State() = %v, want %v", cb.State(), BreakerOpen)
	}
	if err := cb.Allow(); err == nil {
		t.Error("Allow() on reopened breaker = nil, want error")
	}
}
