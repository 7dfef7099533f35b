package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errCacheDown = errors.New("cache unavailable")

func tripped(t *testing.T, maxFailures int) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Now()
	b := NewBreaker(maxFailures, time.Second)
	b.now = func() time.Time { return now }
	for range maxFailures {
		_ = b.Execute(func() error { return errCacheDown })
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after %d failures, got %s", maxFailures, b.State())
	}
	return b, &now
}

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestOpenRejectsWithoutCalling(t *testing.T) {
	b, _ := tripped(t, 3)

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(2, time.Second)
	_ = b.Execute(func() error { return errCacheDown })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errCacheDown })
	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not trip, got %s", b.State())
	}
}

func TestHalfOpenProbeCloses(t *testing.T) {
	b, now := tripped(t, 2)
	*now = now.Add(2 * time.Second)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("successful probe should close, got %s", b.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b, now := tripped(t, 2)
	*now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errCacheDown })
	if b.State() != StateOpen {
		t.Fatalf("failed probe should re-open, got %s", b.State())
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	b, now := tripped(t, 1)
	*now = now.Add(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second call during probe should be rejected, got %v", err)
	}
	close(release)
}

func TestOnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }
	b.OnStateChange(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
	})

	_ = b.Execute(func() error { return errCacheDown })
	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return nil })

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}
