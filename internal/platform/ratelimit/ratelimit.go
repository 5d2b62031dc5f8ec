package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// PerIP returns middleware allowing limit requests per window for each
// client IP, answering 429 with a Retry-After header beyond that. A limit
// <= 0 returns nil: no limiting.
func PerIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return nil
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}),
	)
}
