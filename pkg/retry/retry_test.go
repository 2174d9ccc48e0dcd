package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"photobackup/pkg/config"
	errs "photobackup/pkg/errors"
	"photobackup/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second}, // Capped at max
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		delay := backoff.NextDelay(test.attempt)
		if delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 100*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("Delay %v outside jitter bounds", delay)
		}
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")
	op := func() error {
		attempts++
		return cause
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	notFound := &errs.Error{
		Type:    errs.ErrorTypeNotFound,
		Message: "album gone",
		Code:    404,
	}

	op := func() error {
		attempts++
		return notFound
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	if err != notFound {
		t.Errorf("Expected not found error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for not found), got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
	}

	err := Do(op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, "reset"), true},
		{"server", errs.New(errs.ErrorTypeServerError, "502"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, "slow down"), true},
		{"malformed", errs.New(errs.ErrorTypeMalformedPayload, "bad"), false},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", errs.Wrap(errs.ErrorTypeNetwork, context.DeadlineExceeded, "get"), false},
		{"plain", errors.New("boom"), true},
	}

	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestFromConfig(t *testing.T) {
	rc := config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
	}

	cfg := FromConfig(context.Background(), rc, logger.NewTestLogger())
	if cfg.MaxAttempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", cfg.MaxAttempts)
	}

	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "flaky")
	}, cfg)
	if err == nil || attempts != 4 {
		t.Errorf("Expected 4 failed attempts, got %d (err %v)", attempts, err)
	}

	rc.Enabled = false
	cfg = FromConfig(context.Background(), rc, nil)
	attempts = 0
	err = Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "flaky")
	}, cfg)
	if attempts != 1 {
		t.Errorf("Expected a single attempt with retry disabled, got %d", attempts)
	}
	if !errs.IsType(err, errs.ErrorTypeNetwork) {
		t.Errorf("Expected the unwrapped network error, got %v", err)
	}
}

func TestFromConfigStrategy(t *testing.T) {
	rc := config.RetryConfig{
		Enabled:     true,
		Strategy:    "constant",
		MaxAttempts: 3,
		BaseDelay:   7 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2,
	}

	cfg := FromConfig(context.Background(), rc, nil)
	cb, ok := cfg.Backoff.(*ConstantBackoff)
	if !ok {
		t.Fatalf("Expected a constant backoff, got %T", cfg.Backoff)
	}
	if cb.NextDelay(3) != 7*time.Millisecond {
		t.Errorf("Expected the base delay on every attempt, got %v", cb.NextDelay(3))
	}

	rc.Strategy = ""
	cfg = FromConfig(context.Background(), rc, nil)
	if _, ok := cfg.Backoff.(*ExponentialBackoff); !ok {
		t.Errorf("Expected exponential backoff by default, got %T", cfg.Backoff)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
