package middleware

import (
	"net/http"
	"strconv"

	"oxycors/work/metrics"
)

// Instrument records request counts by endpoint and status, and the number of
// requests in flight.
func Instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		crw := NewCustomResponseWriter(w)
		defer func() {
			metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(crw.StatusCode())).Inc()
		}()
		next(crw, r)
	}
}
