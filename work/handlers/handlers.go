package handlers

import (
	"io"
	"net/http"

	"oxycors/work/logger"
	"oxycors/work/proxy"
	"oxycors/work/utils"
)

// HandleManifest serves GET /manifest?url=.
func HandleManifest(p *proxy.Proxy, log logger.Interface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := p.FetchManifest(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, r, err, log)
			return
		}

		log.Debug("{handlers/handlers - HandleManifest} Serving %s playlist, %d bytes (from hosting page: %v)",
			m.Kind, len(m.Body), m.Extracted)

		w.Header().Set("Content-Type", m.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, m.Body); err != nil {
			log.Debug("{handlers/handlers - HandleManifest} Client went away: %v", err)
		}
	}
}

// HandleSegment serves GET /segment?url=. The upstream body is relayed as it
// arrives and never held in memory.
func HandleSegment(p *proxy.Proxy, log logger.Interface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seg, err := p.OpenSegment(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		defer seg.Close()

		for name, values := range seg.Header {
			w.Header()[name] = values
		}
		w.Header().Set("Cache-Control", p.Config.SegmentCacheControl)
		w.WriteHeader(seg.Status)

		// headers are gone, so a failure here can only cut the body short
		if n, err := seg.WriteTo(w); err != nil {
			log.Debug("{handlers/handlers - HandleSegment} Stream ended after %d bytes: %v", n, err)
		}
	}
}

// HandleExtract serves GET /youtube?url= and /extract?url=, answering with
// the manifest found on the page and a proxied link to it.
func HandleExtract(p *proxy.Proxy, log logger.Interface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := p.ExtractPage(r.Context(), r.URL.Query().Get("url"), publicBase(r, p.Config.PublicURL))
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		utils.WriteJSON(w, http.StatusOK, res)
	}
}

// HandleHealth serves GET /healthz.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found", "path": r.URL.Path})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed", "path": r.URL.Path})
}

// writeError answers with the status and message carried by err.
func writeError(w http.ResponseWriter, r *http.Request, err error, log logger.Interface) {
	status := proxy.StatusOf(err)
	switch proxy.KindOf(err) {
	case proxy.KindClientInput:
		log.Debug("{handlers/handlers - writeError} %s %s: %v", r.Method, r.URL.Path, err)
	case proxy.KindInternal:
		log.Error("{handlers/handlers - writeError} %s %s: %v", r.Method, r.URL.Path, err)
	default:
		log.Warn("{handlers/handlers - writeError} %s %s -> %d: %v", r.Method, r.URL.Path, status, err)
	}
	utils.WriteJSONError(w, status, proxy.MessageOf(err))
}

// publicBase is the configured public URL, or the origin the request came in on.
func publicBase(r *http.Request, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
