package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oxycors/work/logger"
	"oxycors/work/middleware"
	"oxycors/work/proxy"
)

// NewRouter wires every endpoint and wraps the result in the process-wide
// middleware: panic recovery, CORS and the concurrency limit, outermost first.
func NewRouter(p *proxy.Proxy, cors *middleware.CORSPolicy, log logger.Interface, version string) http.Handler {
	cfg := p.Config
	prefix := cfg.ProxyPrefix

	// compress playlists and JSON unless turned off
	compress := middleware.GzipMiddleware
	if cfg.DisableCompression {
		compress = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	router := mux.NewRouter()

	router.HandleFunc("/", middleware.Instrument("usage", compress(HandleUsage(cfg, cors, version)))).Methods("GET")

	router.HandleFunc(prefix+"/manifest", middleware.Instrument("manifest", compress(HandleManifest(p, log)))).Methods("GET")

	router.HandleFunc(prefix+"/segment", middleware.Instrument("segment", HandleSegment(p, log))).Methods("GET")

	extract := middleware.Instrument("extract", compress(HandleExtract(p, log)))
	router.HandleFunc(prefix+"/youtube", extract).Methods("GET")
	router.HandleFunc(prefix+"/extract", extract).Methods("GET")

	router.HandleFunc("/healthz", HandleHealth()).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	var h http.Handler = router
	h = middleware.ConcurrencyLimit(cfg.MaxConcurrentRequests, log, h)
	h = cors.Middleware(h)
	return middleware.Recover(log, h)
}
