package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"

	"perfumevisual/internal/metrics"
)

// ConcurrencyLimit bounds how many long-running pipeline requests execute at
// once. Excess requests wait until a slot frees or the client goes away.
func ConcurrencyLimit(n int64) func(http.Handler) http.Handler {
	if n <= 0 {
		n = 1
	}
	sem := semaphore.NewWeighted(n)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sem.Acquire(r.Context(), 1); err != nil {
				writeError(w, http.StatusServiceUnavailable, "busy", "request abandoned while waiting for a pipeline slot")
				return
			}
			metrics.PipelinesInFlight.Inc()
			defer func() {
				metrics.PipelinesInFlight.Dec()
				sem.Release(1)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
