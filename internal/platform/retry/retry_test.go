package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestLinear(t *testing.T) {
	b := Linear(500 * time.Millisecond)
	want := []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	for i, w := range want {
		if got := b(i + 1); got != w {
			t.Errorf("Linear(500ms)(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 2}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var delays []time.Duration
	p := Policy{
		MaxRetries: 2,
		Backoff: func(attempt int) time.Duration {
			d := Linear(time.Millisecond)(attempt)
			delays = append(delays, d)
			return d
		},
	}
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 || delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("delays = %v, want [1ms 2ms]", delays)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 2, Backoff: Linear(time.Millisecond)}, func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 attempt + 2 retries)", calls)
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	errPermanent := errors.New("permanent")
	calls := 0
	p := Policy{
		MaxRetries: 5,
		Permanent:  func(err error) bool { return errors.Is(err, errPermanent) },
	}
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("err = %v, want %v", err, errPermanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Policy{MaxRetries: 2}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), Policy{MaxRetries: 1}, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "partial", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("DoValue: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want %q", v, "ok")
	}

	v, err = DoValue(context.Background(), Policy{}, func(ctx context.Context) (string, error) {
		return "partial", errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if v != "" {
		t.Errorf("value = %q, want zero value on failure", v)
	}
}
