package middleware

import (
	"net/http"
	"strings"
)

// CORSPolicy decides which Access-Control-Allow-Origin value a response gets.
// An empty allow-list means any origin.
//
// A listed origin is echoed back with Vary: Origin. Origins not on the list get
// no allow header at all; the request is still served and the browser is left
// to block it.
type CORSPolicy struct {
	allowed map[string]bool
}

// NewCORSPolicy builds a policy from the configured origins. Trailing slashes
// are dropped and blank entries ignored.
func NewCORSPolicy(allowedOrigins []string) *CORSPolicy {
	p := &CORSPolicy{}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if p.allowed == nil {
			p.allowed = make(map[string]bool)
		}
		p.allowed[o] = true
	}
	return p
}

// AllowAll reports whether the policy has no allow-list.
func (p *CORSPolicy) AllowAll() bool {
	return len(p.allowed) == 0
}

// AllowOrigin returns the header value for origin, or "" when the header
// must be left off.
func (p *CORSPolicy) AllowOrigin(origin string) string {
	if p.AllowAll() {
		return "*"
	}
	if origin != "" && p.allowed[origin] {
		return origin
	}
	return ""
}

// Apply sets the CORS headers for r on w.
func (p *CORSPolicy) Apply(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if !p.AllowAll() {
		h.Add("Vary", "Origin")
	}
	if v := p.AllowOrigin(r.Header.Get("Origin")); v != "" {
		h.Set("Access-Control-Allow-Origin", v)
	}
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// Middleware applies the policy to every response and answers preflight
// requests with 204.
func (p *CORSPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Apply(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
