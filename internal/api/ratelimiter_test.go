package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticLimiter struct {
	allow bool
	wait  time.Duration
}

func (s *staticLimiter) Allow() bool {
	return s.allow
}

func (s *staticLimiter) RetryAfter() time.Duration {
	return s.wait
}

func TestRateLimitMiddlewareBlocksWhenLimiterDenies(t *testing.T) {
	middleware := rateLimitMiddleware(&staticLimiter{allow: false, wait: 2500 * time.Millisecond}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler should not execute when rate limited")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/application", nil)
	middleware.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After of 3 seconds, got %q", got)
	}
}

func TestRateLimitMiddlewarePassesWhenLimiterAllows(t *testing.T) {
	var called bool
	middleware := rateLimitMiddleware(&staticLimiter{allow: true}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/application/abc", nil)
	middleware.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to execute when limiter allows")
	}
}

func TestRateLimitMiddlewareNeverThrottlesHealth(t *testing.T) {
	var called bool
	middleware := rateLimitMiddleware(&staticLimiter{allow: false}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	middleware.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected health check to bypass the limiter")
	}
}

func TestNewTokenBucketLimiterDisabledForZeroValues(t *testing.T) {
	if limiter := newTokenBucketLimiter(0, 10); limiter != nil {
		t.Fatalf("expected nil limiter for zero rate")
	}
	if limiter := newTokenBucketLimiter(10, 0); limiter != nil {
		t.Fatalf("expected nil limiter for zero burst")
	}
}

func TestNewTokenBucketLimiterAllowsBurst(t *testing.T) {
	limiter := newTokenBucketLimiter(1, 2)
	if limiter == nil {
		t.Fatalf("expected limiter instance")
	}
	if !limiter.Allow() || !limiter.Allow() {
		t.Fatalf("expected burst of two to be allowed")
	}
	if limiter.Allow() {
		t.Fatalf("expected third immediate request to be throttled")
	}
	if got := limiter.RetryAfter(); got != time.Second {
		t.Fatalf("expected one second refill, got %s", got)
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	testCases := map[time.Duration]string{
		0:                       "1",
		40 * time.Millisecond:   "1",
		time.Second:             "1",
		1001 * time.Millisecond: "2",
	}

	for wait, want := range testCases {
		if got := retryAfterSeconds(wait); got != want {
			t.Fatalf("retryAfterSeconds(%s) = %s, want %s", wait, got, want)
		}
	}
}
