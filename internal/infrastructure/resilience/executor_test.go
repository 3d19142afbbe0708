package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteSingleAttemptSurfacesError(t *testing.T) {
	executor := NewExecutor(Config{MaxAttempts: 1, BreakerEnabled: false})

	calls := 0
	wantErr := errors.New("boom")
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected surfaced error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestExecuteRetriesOnlyRetryableErrors(t *testing.T) {
	executor := NewExecutor(Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BreakerEnabled: false,
	})

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}

	calls = 0
	err = executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("terminal")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if err == nil || calls != 1 {
		t.Fatalf("non-retryable error must fail after one attempt, calls=%d err=%v", calls, err)
	}
}

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	executor := NewExecutor(Config{
		MaxAttempts:         1,
		BreakerEnabled:      true,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	classify := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "breaker-op", func(context.Context) error {
			return errors.New("down")
		}, classify)
	}

	err := executor.Execute(context.Background(), "breaker-op", func(context.Context) error {
		t.Fatalf("callback must not run with an open breaker")
		return nil
	}, classify)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	executor := NewExecutor(Config{MaxAttempts: 1, BreakerEnabled: false})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := executor.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("callback must not run with cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
