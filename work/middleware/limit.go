package middleware

import (
	"net/http"

	"github.com/puzpuzpuz/xsync/v3"

	"oxycors/work/logger"
	"oxycors/work/metrics"
	"oxycors/work/utils"
)

// ConcurrencyLimit rejects requests with 503 once max are in flight.
// A max of zero or less disables the limit.
func ConcurrencyLimit(max int, log logger.Interface, next http.Handler) http.Handler {
	if max <= 0 {
		return next
	}
	inFlight := xsync.NewCounter()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		if inFlight.Value() > int64(max) {
			metrics.RequestsRejected.Inc()
			log.Warn("{middleware/limit - ConcurrencyLimit} Max connections reached (%d), rejecting %s %s", max, r.Method, r.URL.Path)
			utils.WriteJSONError(w, http.StatusServiceUnavailable, "Server at capacity")
			return
		}
		next.ServeHTTP(w, r)
	})
}
