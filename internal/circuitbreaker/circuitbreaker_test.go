package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var errUpstream = errors.New("upstream down")

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestCall_OpensAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var transitions []string
	cb := New(Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		Clock:            clock,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v, want upstream error", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Call() while open = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("transitions = %v, want [closed->open]", transitions)
	}
}

// TestCall_HalfOpenRecovery verifies that the breaker probes after the timeout
// and closes after enough consecutive successes.
func TestCall_HalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 30 * time.Second, Clock: clock})
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	clock.Advance(31 * time.Second)

	if err := cb.Call(ctx, succeed); err != nil {
		t.Fatalf("probe call error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open after one success", cb.State())
	}
	_ = cb.Call(ctx, succeed)
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCall_HalfOpenFailureReopens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := New(Config{FailureThreshold: 1, Timeout: 10 * time.Second, Clock: clock})
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	clock.Advance(11 * time.Second)
	_ = cb.Call(ctx, fail)

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if err := cb.Call(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("Call() = %v, want ErrOpen (timeout restarted)", err)
	}
}

func TestCall_CallerCancellationNotCounted(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, Clock: clockwork.NewFakeClock()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = cb.Call(ctx, func() error { return ctx.Err() })
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}
