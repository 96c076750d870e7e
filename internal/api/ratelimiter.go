package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter admits a request or reports how long the caller should wait.
type rateLimiter interface {
	Admit() (ok bool, retryAfter time.Duration)
}

type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) *tokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Admit takes a token when one is available. Otherwise the reservation is
// cancelled so a rejected request does not eat into the next window.
func (b *tokenBucket) Admit() (bool, time.Duration) {
	if b == nil || b.limiter == nil {
		return true, 0
	}
	r := b.limiter.Reserve()
	if !r.OK() {
		return false, time.Second
	}
	delay := r.Delay()
	if delay == 0 {
		return true, 0
	}
	r.Cancel()
	return false, delay
}

// exemptFromRateLimit lets GET /health answer while the node API is saturated.
func exemptFromRateLimit(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == "/health"
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}
		ok, wait := limiter.Admit()
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

// retryAfterSeconds rounds up to whole seconds, at least one.
func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
