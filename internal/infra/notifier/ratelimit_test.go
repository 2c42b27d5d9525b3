package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2.0, 5)

	if limiter == nil || limiter.bucket == nil {
		t.Fatal("expected an initialized limiter")
	}
	if got := limiter.bucket.Burst(); got != 5 {
		t.Errorf("burst = %d, want 5", got)
	}
	if got := float64(limiter.bucket.Limit()); got != 2.0 {
		t.Errorf("rate = %v, want 2", got)
	}
}

func TestRateLimiter_AdmitsFirstSend(t *testing.T) {
	limiter := NewRateLimiter(10.0, 5)

	if err := limiter.Allow(context.Background()); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
}

func TestRateLimiter_BlocksPastBurst(t *testing.T) {
	limiter := NewRateLimiter(4.0, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx); err != nil {
			t.Fatalf("burst send %d: %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst took %v, want immediate", elapsed)
	}

	// 4つ目はトークン切れ。refill(250ms)が deadline(100ms) を超えるので待たずに失敗する
	deadlined, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	err := limiter.Allow(deadlined)
	if err == nil {
		t.Fatal("send past the burst succeeded, want rate limit error")
	}
	if !isLimiterDeadline(err) {
		t.Errorf("Allow() = %v, want context deadline error", err)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	limiter := NewRateLimiter(50.0, 1)
	ctx := context.Background()

	if err := limiter.Allow(ctx); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// 50req/s なので次のトークンは20ms後
	start := time.Now()
	if err := limiter.Allow(ctx); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("second send returned after %v, want a refill wait", elapsed)
	}
}

func TestRateLimiter_CancelUnblocksWaiter(t *testing.T) {
	limiter := NewRateLimiter(1.0, 1)

	if err := limiter.Allow(context.Background()); err != nil {
		t.Fatalf("first send: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- limiter.Allow(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Allow() = %v, want context.Canceled", err)
	}
}

// isLimiterDeadline matches both shapes rate.Limiter produces when a wait
// cannot finish in time: a plain deadline error, or its fail-fast
// "would exceed context deadline" error.
func isLimiterDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "would exceed context deadline")
}
