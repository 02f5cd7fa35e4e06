package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/bobkitchen/whonext-core/internal/errors"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.1,
		IsRetryable:  IsRetryableCall,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Retry = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.TranscriptionUnavailable, "warming up")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	wantErr := apperrors.New(apperrors.DiarizationUnavailable, "down")
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return wantErr
	})

	if err != wantErr {
		t.Errorf("Retry = %v, want %v", err, wantErr)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return apperrors.New(apperrors.AudioFormatInvalid, "stereo input")
	})

	if !apperrors.IsCode(err, apperrors.AudioFormatInvalid) {
		t.Errorf("Retry = %v, want AudioFormatInvalid", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(3), func() error {
		t.Error("fn should not run with cancelled context")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
}

func TestIsRetryableCall(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unavailable", apperrors.New(apperrors.TranscriptionUnavailable, "x"), true},
		{"bad format", apperrors.New(apperrors.AudioFormatInvalid, "x"), false},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		if got := IsRetryableCall(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryableCall = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:    time.Second,
		MaxDelay:     2 * time.Second,
		JitterFactor: 0.2,
	}.withDefaults()

	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(cfg, attempt)
		// MaxDelay plus worst-case jitter
		if d > cfg.MaxDelay+time.Duration(float64(cfg.MaxDelay)*cfg.JitterFactor) {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}
