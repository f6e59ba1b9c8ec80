package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_SameHost_EnforcesMinDelay(t *testing.T) {
	limiter := NewHostLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "seojobs.com"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "seojobs.com"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Allow 80ms for timer jitter.
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentHosts_NoCrossBlocking(t *testing.T) {
	limiter := NewHostLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "seojobs.com"); err != nil {
		t.Fatalf("seojobs wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "example.com"); err != nil {
		t.Fatalf("example wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("expected second host to be near-instant, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(5 * time.Second)

	if err := limiter.Wait(context.Background(), "seojobs.com"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "seojobs.com"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestWaitURL_KeysByHost(t *testing.T) {
	limiter := NewHostLimiter(time.Hour)
	ctx := context.Background()

	if err := limiter.WaitURL(ctx, "https://seojobs.com/page/2/"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// Same host with a different path must be limited.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.WaitURL(short, "https://seojobs.com/job/1/"); err == nil {
		t.Fatal("expected same-host request to be limited")
	}

	if err := limiter.WaitURL(ctx, "https://other.example/job/1/"); err != nil {
		t.Fatalf("other host: %v", err)
	}
}

func TestNewHostLimiter_ZeroDelayNeverBlocks(t *testing.T) {
	limiter := NewHostLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := limiter.Wait(ctx, "seojobs.com"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero delay took %v", elapsed)
	}
}
