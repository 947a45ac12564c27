package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("redis-cache", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Execute = %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker ran fn or returned %v", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("db", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }
	_ = cb.Execute(func() error { return errors.New("down") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("still down") })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open", cb.GetState())
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("state after Reset = %v", cb.GetState())
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "ping", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("Retry = %v after %d attempts", err, attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Retry(context.Background(), "ping", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) || attempts != 2 {
		t.Errorf("Retry = %v after %d attempts", err, attempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	bad := errors.New("bad dsn")
	attempts := 0
	err := Retry(context.Background(), "open", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(bad)
	})
	if err != bad || attempts != 1 {
		t.Errorf("Retry = %v after %d attempts", err, attempts)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "ping", RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}, func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	if d := b.Delay(5); d > 3*time.Second {
		t.Errorf("delay %v exceeds cap", d)
	}
	if d := b.Delay(1); d < 900*time.Millisecond || d > 1100*time.Millisecond {
		t.Errorf("first delay %v outside jitter band", d)
	}
	if d := (Backoff{}).Delay(0); d <= 0 {
		t.Errorf("default delay = %v", d)
	}
}

func TestSnapshotCountsRejections(t *testing.T) {
	cb := NewCircuitBreaker("redis-cache", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return opened }

	if s := cb.Snapshot(); s.State != "closed" || !s.OpenedAt.IsZero() {
		t.Fatalf("initial snapshot = %+v", s)
	}
	_ = cb.Execute(func() error { return errors.New("connection refused") })
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return nil })
	}
	s := cb.Snapshot()
	if s.State != "open" || s.Rejected != 3 || s.ConsecutiveFailures != 1 || !s.OpenedAt.Equal(opened) {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep = %v", err)
	}
}
