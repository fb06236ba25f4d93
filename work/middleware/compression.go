package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"oxycors/work/logger"
)

// gzipWriterPool keeps reusable gzip writers at BestSpeed so playlist and JSON
// responses are compressed without a fresh allocation per request.
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	},
}

// gzipResponseWriter sends body writes through a gzip writer while headers and
// status still go to the original ResponseWriter.
//
// The embedded io.Writer is the pooled gzip writer. wroteHeader records
// whether the handler produced a response at all, so the middleware can skip
// the gzip footer and drop Content-Encoding when nothing was written.
type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
	wroteHeader bool // set once WriteHeader or Write has run
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	w.wroteHeader = true
	// the compressed length is unknown until the body is complete
	w.ResponseWriter.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.Writer.Write(b)
}

// Flush pushes the gzip buffer and then the underlying writer.
func (w *gzipResponseWriter) Flush() {
	if gzw, ok := w.Writer.(*gzip.Writer); ok {
		gzw.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// GzipMiddleware compresses the response when the client advertises gzip.
// It is meant for playlists and JSON; segment bodies are relayed as-is.
func GzipMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		// pass through if the client doesn't accept gzip encoding
		if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(w)
		gzw := &gzipResponseWriter{Writer: gz, ResponseWriter: w}
		defer func() {
			// nothing went out (or the handler panicked first); leave the
			// response uncompressed so an error body can still be written
			if !gzw.wroteHeader {
				w.Header().Del("Content-Encoding")
				gz.Reset(io.Discard)
				gzipWriterPool.Put(gz)
				return
			}
			if err := gz.Close(); err != nil {
				logger.Error("{middleware/compression - GzipMiddleware} failed to close gzip writer for: %s %s - %v", r.Method, r.URL.Path, err)
			}
			gzipWriterPool.Put(gz)
		}()

		next(gzw, r)
	}
}
