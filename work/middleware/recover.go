package middleware

import (
	"net/http"
	"runtime/debug"

	"oxycors/work/logger"
	"oxycors/work/utils"
)

// Recover turns a panic in next into a 500 JSON answer. Once headers are on
// the wire the connection is left to finish as it can.
func Recover(log logger.Interface, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crw := NewCustomResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error("{middleware/recover - Recover} panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			if !crw.WroteHeader {
				crw.Header().Del("Content-Encoding")
				utils.WriteJSONError(crw, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(crw, r)
	})
}
