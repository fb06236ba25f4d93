package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/ratelimit"

	"oxycors/work/config"
)

// Profile picks the set of browser-like headers sent upstream.
type Profile int

const (
	ProfileManifest Profile = iota // playlist fetches
	ProfileSegment                 // media segments, keys and init sections
	ProfilePage                    // hosting-page HTML for manifest extraction
)

func (p Profile) String() string {
	switch p {
	case ProfileSegment:
		return "segment"
	case ProfilePage:
		return "page"
	default:
		return "manifest"
	}
}

const maxRedirects = 10

// HeaderSettingClient wraps http.Client to automatically set headers.
//
// Every upstream fetch goes through one shared instance: it applies the
// browser-like header profile for the kind of resource being fetched and
// paces outbound requests through an optional process-wide rate limiter.
type HeaderSettingClient struct {
	Client        *http.Client
	limiter       ratelimit.Limiter
	userAgent     string
	pageUserAgent string
}

// NewHeaderSettingClient builds the shared outbound client. There is no
// overall timeout so long segments can stream; only response headers are
// bounded.
func NewHeaderSettingClient(cfg *config.Config) *HeaderSettingClient {
	client := &http.Client{
		Timeout: 0, // No overall timeout for streaming
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			DisableKeepAlives:     false,
			ResponseHeaderTimeout: cfg.UpstreamHeaderTimeout, // Only timeout for headers
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after too many redirects")
			}
			return nil
		},
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.UpstreamRateLimit > 0 {
		limiter = ratelimit.New(cfg.UpstreamRateLimit)
	}

	return &HeaderSettingClient{
		Client:        client,
		limiter:       limiter,
		userAgent:     cfg.UserAgent,
		pageUserAgent: cfg.PageUserAgent,
	}
}

// Get issues a GET for rawURL with the headers of profile. The request is
// bound to ctx so a departing client cancels the upstream fetch.
func (hsc *HeaderSettingClient) Get(ctx context.Context, rawURL string, profile Profile) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return hsc.Do(req, profile)
}

// Do waits for the rate limiter, then sends req with the headers of profile.
// A request whose context ended while waiting is dropped without touching the
// network.
func (hsc *HeaderSettingClient) Do(req *http.Request, profile Profile) (*http.Response, error) {
	hsc.limiter.Take()
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	hsc.setHeaders(req, profile)
	return hsc.Client.Do(req)
}

// setHeaders makes the request look like it came from a browser. Accept-Encoding
// is left to the transport so compressed bodies are decoded transparently.
func (hsc *HeaderSettingClient) setHeaders(req *http.Request, profile Profile) {
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")

	switch profile {
	case ProfilePage:
		origin := req.URL.Scheme + "://" + req.URL.Host
		req.Header.Set("User-Agent", hsc.pageUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Origin", origin)
		req.Header.Set("Referer", origin+"/")
		req.Header.Set("Sec-CH-UA", `"Chromium";v="136", "Not.A/Brand";v="99", "Google Chrome";v="136"`)
		req.Header.Set("Sec-CH-UA-Mobile", "?0")
		req.Header.Set("Sec-CH-UA-Platform", `"Windows"`)
	case ProfileSegment:
		req.Header.Set("User-Agent", hsc.userAgent)
		req.Header.Set("Accept", "application/vnd.apple.mpegurl,application/x-mpegURL,video/*,audio/*,image/*,text/html,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	default:
		req.Header.Set("User-Agent", hsc.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/vnd.apple.mpegurl,application/x-mpegURL,*/*;q=0.8")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
}
