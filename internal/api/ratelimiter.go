package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter guards the submission and lookup routes. RetryAfter is the wait
// a rejected client is told to observe.
type rateLimiter interface {
	Allow() bool
	RetryAfter() time.Duration
}

// tokenBucket shares one bucket across all clients; the service sits behind a
// single form frontend, so per-client buckets would not add anything.
type tokenBucket struct {
	limiter *rate.Limiter
}

// newTokenBucketLimiter returns nil when either setting is zero or negative,
// which disables rate limiting.
func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 || burst <= 0 {
		return nil
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (b *tokenBucket) Allow() bool {
	return b.limiter.Allow()
}

// RetryAfter is the time for one token to refill.
func (b *tokenBucket) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(b.limiter.Limit()))
}

// rateLimitMiddleware answers 429 once the bucket is empty. Health checks are
// never throttled so orchestrators do not restart a busy instance.
func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfterSeconds(limiter.RetryAfter()))
		writeError(w, http.StatusTooManyRequests, "Too many requests",
			"application intake is busy, retry after the interval in the Retry-After header")
	})
}

// retryAfterSeconds rounds up to whole seconds, the header's only unit.
func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
