package middleware

import "net/http"

// CustomResponseWriter wraps http.ResponseWriter to track the status code and
// whether headers have gone out, and passes Flush through.
type CustomResponseWriter struct {
	http.ResponseWriter
	WroteHeader bool
	statusCode  int
}

func NewCustomResponseWriter(w http.ResponseWriter) *CustomResponseWriter {
	if crw, ok := w.(*CustomResponseWriter); ok {
		return crw
	}
	return &CustomResponseWriter{ResponseWriter: w}
}

func (crw *CustomResponseWriter) WriteHeader(statusCode int) {
	if crw.WroteHeader {
		return
	}
	crw.statusCode = statusCode
	crw.ResponseWriter.WriteHeader(statusCode)
	crw.WroteHeader = true
}

func (crw *CustomResponseWriter) Write(b []byte) (int, error) {
	if !crw.WroteHeader {
		crw.WriteHeader(http.StatusOK)
	}
	return crw.ResponseWriter.Write(b)
}

func (crw *CustomResponseWriter) Flush() {
	if flusher, ok := crw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// StatusCode returns the status sent, or 200 when the handler never wrote one.
func (crw *CustomResponseWriter) StatusCode() int {
	if crw.statusCode == 0 {
		return http.StatusOK
	}
	return crw.statusCode
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (crw *CustomResponseWriter) Unwrap() http.ResponseWriter {
	return crw.ResponseWriter
}
