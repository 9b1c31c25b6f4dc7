package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return 42, nil
	})
	if err != nil || got != 42 || calls != 3 {
		t.Errorf("got %d, %v after %d calls", got, err, calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastRetry(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, BackoffFactor: 2}

	calls := 0
	err := Retry(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.attempt, 100*time.Millisecond, time.Second, 2); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
