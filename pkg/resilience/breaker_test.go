package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		if b.RecordFailure("anthropic", errors.New("boom")) {
			t.Fatalf("failure %d should not request heal", i+1)
		}
		if got := b.State("anthropic"); got != CircuitClosed {
			t.Fatalf("state after %d failures = %s, want closed", i+1, got)
		}
	}

	if !b.RecordFailure("anthropic", errors.New("boom")) {
		t.Fatal("threshold-crossing failure should request heal")
	}
	if got := b.State("anthropic"); got != CircuitOpen {
		t.Fatalf("state = %s, want open", got)
	}
	if b.CanExecute("anthropic") {
		t.Fatal("open circuit should reject execution")
	}

	// Further failures while open must not re-trigger healing.
	if b.RecordFailure("anthropic", errors.New("boom")) {
		t.Fatal("failure while open should not request heal again")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewCircuitBreaker()
	clock := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("openai", errors.New("502 bad gateway"))
	}
	if b.CanExecute("openai") {
		t.Fatal("circuit should be open")
	}

	clock = clock.Add(DefaultRecoveryTimeout + time.Second)
	if !b.CanExecute("openai") {
		t.Fatal("circuit should allow a probe after recovery timeout")
	}
	if got := b.State("openai"); got != CircuitHalfOpen {
		t.Fatalf("state = %s, want half_open", got)
	}

	for i := 0; i < DefaultSuccessThreshold; i++ {
		b.RecordSuccess("openai")
	}
	if got := b.State("openai"); got != CircuitClosed {
		t.Fatalf("state after recovery = %s, want closed", got)
	}
	if !b.CanExecute("openai") {
		t.Fatal("closed circuit should allow execution")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker()
	clock := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("google", errors.New("boom"))
	}
	clock = clock.Add(DefaultRecoveryTimeout + time.Second)
	if !b.CanExecute("google") {
		t.Fatal("expected half-open probe")
	}

	if b.RecordFailure("google", errors.New("boom")) {
		t.Fatal("half-open failure should not request heal")
	}
	if got := b.State("google"); got != CircuitOpen {
		t.Fatalf("state = %s, want open", got)
	}
	if b.CanExecute("google") {
		t.Fatal("reopened circuit should reject execution")
	}
}

func TestBreakerRecoveryIn(t *testing.T) {
	b := NewCircuitBreaker()
	clock := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	if got := b.RecoveryIn("xai"); got != 0 {
		t.Fatalf("RecoveryIn on closed circuit = %v, want 0", got)
	}

	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("xai", errors.New("boom"))
	}
	clock = clock.Add(20 * time.Second)
	if got := b.RecoveryIn("xai"); got != 40*time.Second {
		t.Fatalf("RecoveryIn = %v, want 40s", got)
	}
}

func TestBreakerForceAndReset(t *testing.T) {
	b := NewCircuitBreaker()

	b.ForceOpen("ollama")
	if b.CanExecute("ollama") {
		t.Fatal("forced-open circuit should reject execution")
	}
	b.ForceClose("ollama")
	if !b.CanExecute("ollama") {
		t.Fatal("forced-closed circuit should allow execution")
	}

	b.RecordFailure("ollama", errors.New("boom"))
	b.Reset("ollama")
	snaps := b.Snapshots()
	if _, ok := snaps["ollama"]; ok {
		t.Fatal("reset should drop circuit state")
	}
}

func TestBreakerSetThresholds(t *testing.T) {
	b := NewCircuitBreaker()
	b.SetThresholds(2, 10*time.Second, 1)

	b.RecordFailure("vllm", errors.New("boom"))
	if !b.RecordFailure("vllm", errors.New("boom")) {
		t.Fatal("second failure should cross the custom threshold")
	}
	if got := b.State("vllm"); got != CircuitOpen {
		t.Fatalf("state = %s, want open", got)
	}
}

func TestBreakerStateChangeObserver(t *testing.T) {
	b := NewCircuitBreaker()
	var transitions []CircuitState
	b.OnStateChange(func(provider string, state CircuitState) {
		if provider != "anthropic" {
			t.Fatalf("observer provider = %q", provider)
		}
		transitions = append(transitions, state)
	})

	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("anthropic", errors.New("boom"))
	}
	if len(transitions) != 1 || transitions[0] != CircuitOpen {
		t.Fatalf("transitions = %v, want [open]", transitions)
	}
}

func TestBreakerOpenCircuits(t *testing.T) {
	b := NewCircuitBreaker()
	b.ForceOpen("a")
	b.ForceOpen("b")
	b.RecordFailure("c", errors.New("boom"))

	open := b.OpenCircuits()
	if len(open) != 2 {
		t.Fatalf("OpenCircuits = %v, want two entries", open)
	}
}
