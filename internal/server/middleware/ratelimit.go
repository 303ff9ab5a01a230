package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to requests per window. Uses a sliding window algorithm. Rejected requests
// get a 429 with the standard error envelope.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
}

// LoginRateLimit limits credential-bearing endpoints (login and first-time
// setup). One limiter instance shares its budget across every route it
// wraps. It is independent of the per-account lockout.
func LoginRateLimit(attempts int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		attempts,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Too many login attempts, please try again later")
		}),
	)
}
