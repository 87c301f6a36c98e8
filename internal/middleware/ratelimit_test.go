package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// newTestLimiter returns a limiter driven by the returned clock.
func newTestLimiter(t *testing.T, cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.mu.Lock()
	rl.now = clock.Now
	rl.mu.Unlock()
	t.Cleanup(rl.Stop)
	return rl, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ============================================================================
// NewRateLimiter Tests (Configuration)
// ============================================================================

func TestNewRateLimiter_DefaultConfig(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	defer rl.Stop()

	if rl.rate != 100 {
		t.Errorf("expected default rate 100, got %d", rl.rate)
	}
	if rl.window != time.Minute {
		t.Errorf("expected default window 1m, got %v", rl.window)
	}
	if rl.burst != 20 {
		t.Errorf("expected default burst 20, got %d", rl.burst)
	}
}

func TestRateLimiter_Stop_Idempotent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	rl.Stop()
	rl.Stop()
}

// ============================================================================
// Allow() Tests
// ============================================================================

func TestAllow_FirstRequest_StartsWithFullBucket(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 10, Window: time.Minute, Burst: 5})

	allowed, remaining, _ := rl.Allow("user:123")

	if !allowed {
		t.Error("first request should be allowed")
	}
	// rate + burst - this request
	if remaining != 14 {
		t.Errorf("expected remaining 14, got %d", remaining)
	}
}

func TestAllow_ExceedsLimit_Denies(t *testing.T) {
	t.Parallel()
	rl, clock := newTestLimiter(t, RateLimitConfig{Rate: 5, Window: time.Minute, Burst: 1})

	for i := 0; i < 6; i++ {
		if allowed, _, _ := rl.Allow("user:123"); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, reset := rl.Allow("user:123")
	if allowed {
		t.Error("7th request should be denied after limit exceeded")
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}
	// one token every 12s
	wait := reset.Sub(clock.Now())
	if wait < 11*time.Second || wait > 13*time.Second {
		t.Errorf("expected reset about 12s out, got %v", wait)
	}
}

func TestAllow_DifferentKeys_SeparateBuckets(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 5, Window: time.Minute, Burst: 1})

	for i := 0; i < 6; i++ {
		rl.Allow("user:123")
	}
	if allowed, _, _ := rl.Allow("user:123"); allowed {
		t.Error("user:123 should be denied")
	}

	allowed, remaining, _ := rl.Allow("user:456")
	if !allowed {
		t.Error("different user should have separate bucket")
	}
	if remaining != 5 {
		t.Errorf("expected remaining 5, got %d", remaining)
	}
}

func TestAllow_Refill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		advance       time.Duration
		wantRemaining int
	}{
		{"one window refills rate", 5 * time.Second, 4},
		{"capped at rate plus burst", time.Minute, 5},
		{"partial refill", 2 * time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// one token per second
			rl, clock := newTestLimiter(t, RateLimitConfig{Rate: 5, Window: 5 * time.Second, Burst: 1})

			for i := 0; i < 6; i++ {
				rl.Allow("user:123")
			}
			clock.Advance(tt.advance)

			allowed, remaining, _ := rl.Allow("user:123")
			if !allowed {
				t.Fatal("should be allowed after refill")
			}
			if remaining != tt.wantRemaining {
				t.Errorf("expected remaining %d, got %d", tt.wantRemaining, remaining)
			}
		})
	}
}

func TestAllow_ConcurrentAccess_ThreadSafe(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 1000, Window: time.Minute, Burst: 100})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			key := "user:" + strconv.Itoa(worker%3)
			for j := 0; j < 100; j++ {
				rl.Allow(key)
			}
		}(i)
	}
	wg.Wait()
}

// ============================================================================
// Cleanup Tests
// ============================================================================

func TestCleanupIdle_RemovesOnlyIdleBuckets(t *testing.T) {
	t.Parallel()
	rl, clock := newTestLimiter(t, RateLimitConfig{Rate: 10, Window: time.Minute})

	rl.Allow("user:idle")
	clock.Advance(90 * time.Second)
	rl.Allow("user:fresh")
	clock.Advance(45 * time.Second)

	rl.cleanupIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["user:idle"]; ok {
		t.Error("idle bucket should have been removed")
	}
	if _, ok := rl.buckets["user:fresh"]; !ok {
		t.Error("fresh bucket should be kept")
	}
}

// ============================================================================
// RateLimit Middleware Tests
// ============================================================================

func TestRateLimit_SetsHeaders(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 10, Window: time.Minute, Burst: 5})

	handler := &captureHandler{}
	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	rr := httptest.NewRecorder()

	RateLimit(rl)(handler).ServeHTTP(rr, req)

	if !handler.called {
		t.Fatal("handler should be called")
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("expected X-RateLimit-Limit 10, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "14" {
		t.Errorf("expected X-RateLimit-Remaining 14, got %q", got)
	}
	if rr.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header")
	}
}

func TestRateLimit_Exhausted_Returns429(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 1, Window: time.Minute, Burst: 1})

	handler := &captureHandler{}
	mw := RateLimit(rl)(handler)

	for i := 0; i < 2; i++ {
		mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	}

	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimit_KeysByUser(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 1, Window: time.Minute, Burst: 1})

	mw := RateLimit(rl)(&captureHandler{})

	// Exhaust the anonymous bucket for this address.
	for i := 0; i < 3; i++ {
		mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user:alice"))
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("signed-in user should have a separate bucket, got status %d", rr.Code)
	}
}

func TestClientAddr_StripsPort(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:52100"
	if got := clientAddr(req); got != "203.0.113.7" {
		t.Errorf("expected host only, got %q", got)
	}

	req.RemoteAddr = "not-an-addr"
	if got := clientAddr(req); got != "not-an-addr" {
		t.Errorf("expected raw address fallback, got %q", got)
	}
}
