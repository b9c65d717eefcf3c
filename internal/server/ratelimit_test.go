package server

import (
	"testing"
	"time"
)

func TestTokenBucketAllowsBurstThenBlocks(t *testing.T) {
	bucket := newTokenBucket(0.001, 3)
	for i := 0; i < 3; i++ {
		if !bucket.Allow() {
			t.Fatalf("expected burst request %d to pass", i+1)
		}
	}
	if bucket.Allow() {
		t.Fatal("expected request beyond burst to be blocked")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	bucket := newTokenBucket(1000, 1)
	if !bucket.Allow() {
		t.Fatal("expected first request to pass")
	}
	time.Sleep(5 * time.Millisecond)
	if !bucket.Allow() {
		t.Fatal("expected bucket to refill")
	}
}

func TestRateLimiterDisabledByDefault(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	if !rl.AllowRequest() {
		t.Fatal("expected unconfigured limiter to allow requests")
	}
	allowed, _, err := rl.AllowLogin("203.0.113.1")
	if err != nil {
		t.Fatalf("AllowLogin returned error: %v", err)
	}
	if !allowed {
		t.Fatal("expected unconfigured limiter to allow logins")
	}
}

func TestRateLimiterLoginThrottlePerIP(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 2, LoginWindow: time.Minute})

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.AllowLogin("203.0.113.1")
		if err != nil {
			t.Fatalf("AllowLogin returned error: %v", err)
		}
		if !allowed {
			t.Fatalf("expected attempt %d to pass", i+1)
		}
	}

	allowed, retryAfter, err := rl.AllowLogin("203.0.113.1")
	if err != nil {
		t.Fatalf("AllowLogin returned error: %v", err)
	}
	if allowed {
		t.Fatal("expected third attempt to be throttled")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}

	// A different address keeps its own budget.
	if allowed, _, _ := rl.AllowLogin("203.0.113.2"); !allowed {
		t.Fatal("expected other address to pass")
	}
}

func TestRateLimiterEmptyKeyFallsBackToSharedBucket(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 1, LoginWindow: time.Minute})
	if allowed, _, _ := rl.AllowLogin(""); !allowed {
		t.Fatal("expected first anonymous attempt to pass")
	}
	if allowed, _, _ := rl.AllowLogin(""); allowed {
		t.Fatal("expected anonymous attempts to share one bucket")
	}
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 1, LoginWindow: time.Minute})
	if allowed, _, _ := rl.AllowLogin("203.0.113.1"); !allowed {
		t.Fatal("expected attempt to pass")
	}

	rl.loginMu.Lock()
	rl.loginBuckets["203.0.113.1"].lastSeen = time.Now().Add(-3 * time.Minute)
	rl.cleanupLocked()
	remaining := len(rl.loginBuckets)
	rl.loginMu.Unlock()

	if remaining != 0 {
		t.Fatalf("expected idle bucket to be dropped, %d remain", remaining)
	}
}
