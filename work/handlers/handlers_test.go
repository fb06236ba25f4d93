package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxycors/work/buffer"
	"oxycors/work/client"
	"oxycors/work/config"
	"oxycors/work/extractor"
	"oxycors/work/logger"
	"oxycors/work/middleware"
	"oxycors/work/parser"
	"oxycors/work/proxy"
)

type pageStub struct {
	manifestURL string
}

func (s pageStub) Matches(u *url.URL) bool { return u.Hostname() == "video.example" }

func (s pageStub) Extract(context.Context, string) extractor.Result {
	if s.manifestURL == "" {
		return extractor.Absent
	}
	return extractor.Result{ManifestURL: s.manifestURL, Found: true}
}

func testConfig() *config.Config {
	return &config.Config{
		UserAgent:           "test-agent",
		PageUserAgent:       "test-page-agent",
		SegmentCacheControl: "public, max-age=3600",
		MaxManifestBytes:    1 << 20,
	}
}

func newTestRouter(cfg *config.Config, ext extractor.PageManifestExtractor) http.Handler {
	log := logger.Discard()
	rewriter := parser.NewRewriter(parser.WithPrefix(cfg.PublicURL + cfg.ProxyPrefix))
	p := proxy.New(cfg, client.NewHeaderSettingClient(cfg), ext, rewriter, buffer.NewBufferPool(0), log)
	return NewRouter(p, middleware.NewCORSPolicy(cfg.AllowedOrigins), log, "test")
}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/live/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\n480p/index.m3u8\n"))
	})
	mux.HandleFunc("/live/seg001.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("ETag", `"seg1"`)
		w.Header().Set("X-Internal", "secret")
		w.Header().Set("Cache-Control", "private")
		w.Write([]byte("0123456789"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestManifestEndpoint(t *testing.T) {
	srv := upstream(t)
	h := newTestRouter(testConfig(), extractor.Disabled{})

	rec := get(h, "/manifest?url="+url.QueryEscape(srv.URL+"/live/index.m3u8"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "#EXT-X-STREAM-INF:BANDWIDTH=800000", lines[1])
	assert.Equal(t, "/manifest?url="+url.QueryEscape(srv.URL+"/live/480p/index.m3u8"), lines[2])
}

func TestManifestEndpointWithPrefix(t *testing.T) {
	srv := upstream(t)
	cfg := testConfig()
	cfg.ProxyPrefix = "/api/proxy"
	h := newTestRouter(cfg, extractor.Disabled{})

	rec := get(h, "/api/proxy/manifest?url="+url.QueryEscape(srv.URL+"/live/index.m3u8"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\n/api/proxy/manifest?url=")
}

func TestManifestEndpointErrors(t *testing.T) {
	srv := upstream(t)
	h := newTestRouter(testConfig(), pageStub{})

	tests := []struct {
		name   string
		target string
		status int
		msg    string
	}{
		{"missing url", "/manifest", http.StatusBadRequest, "Missing url parameter"},
		{"invalid url", "/manifest?url=not%20a%20url", http.StatusBadRequest, "Invalid url format"},
		{"upstream 404", "/manifest?url=" + url.QueryEscape(srv.URL+"/nope.m3u8"), http.StatusNotFound, "Failed to fetch manifest: Not Found"},
		{"extraction absent", "/manifest?url=" + url.QueryEscape("https://video.example/watch?v=1"), http.StatusBadGateway, proxy.MsgExtractionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.target, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.msg, decodeError(t, rec)["error"])
		})
	}
}

func TestManifestEndpointFromHostingPage(t *testing.T) {
	srv := upstream(t)
	h := newTestRouter(testConfig(), pageStub{manifestURL: srv.URL + "/live/index.m3u8"})

	rec := get(h, "/manifest?url="+url.QueryEscape("https://video.example/watch?v=1"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/manifest?url="+url.QueryEscape(srv.URL+"/live/480p/index.m3u8"))
}

func TestSegmentEndpoint(t *testing.T) {
	srv := upstream(t)
	h := newTestRouter(testConfig(), extractor.Disabled{})

	rec := get(h, "/segment?url="+url.QueryEscape(srv.URL+"/live/seg001.ts"), map[string]string{"Accept-Encoding": "gzip"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Equal(t, "video/mp2t", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"seg1"`, rec.Header().Get("ETag"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("X-Internal"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestSegmentEndpointNotFound(t *testing.T) {
	srv := upstream(t)
	h := newTestRouter(testConfig(), extractor.Disabled{})

	rec := get(h, "/segment?url="+url.QueryEscape(srv.URL+"/live/seg999.ts"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Failed to fetch segment: Not Found", decodeError(t, rec)["error"])
}

func TestExtractEndpoint(t *testing.T) {
	h := newTestRouter(testConfig(), pageStub{manifestURL: "https://manifest.example/live/index.m3u8"})

	rec := get(h, "/youtube?url="+url.QueryEscape("https://video.example/watch?v=1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res proxy.Extraction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "https://video.example/watch?v=1", res.ResponseURL)

	var keys map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Equal(t, "https://video.example/watch?v=1", keys["responseUrl"])
	assert.NotContains(t, keys, "pageUrl")
	assert.Equal(t, "https://manifest.example/live/index.m3u8", res.ManifestURL)
	assert.Equal(t, "http://example.com/manifest?url=https%3A%2F%2Fmanifest.example%2Flive%2Findex.m3u8", res.ProxyURL)

	rec = get(h, "/extract?url="+url.QueryEscape("https://cdn.example/live.m3u8"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, proxy.MsgUnsupportedPage, decodeError(t, rec)["error"])
}

func TestCORSAllowList(t *testing.T) {
	srv := upstream(t)
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://player.example"}
	h := newTestRouter(cfg, extractor.Disabled{})
	target := "/segment?url=" + url.QueryEscape(srv.URL+"/live/seg001.ts")

	rec := get(h, target, map[string]string{"Origin": "https://player.example"})
	assert.Equal(t, "https://player.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(h, target, map[string]string{"Origin": "https://other.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreflight(t *testing.T) {
	h := newTestRouter(testConfig(), extractor.Disabled{})

	req := httptest.NewRequest(http.MethodOptions, "/manifest?url=x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestFallbackRoutes(t *testing.T) {
	h := newTestRouter(testConfig(), extractor.Disabled{})

	rec := get(h, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "/nowhere", body["path"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodPost, "/manifest", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeError(t, rec)["status"])
}

func TestUsage(t *testing.T) {
	h := newTestRouter(testConfig(), extractor.Disabled{})

	rec := get(h, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc usageDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "test", doc.Version)
	assert.Equal(t, "*", doc.AllowedOrigins)
	require.Len(t, doc.Endpoints, 3)
	assert.Equal(t, "/manifest?url=", doc.Endpoints[0].Path)
}

func TestPublicBase(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://proxy.local:8080/youtube", nil)
	assert.Equal(t, "http://proxy.local:8080", publicBase(req, ""))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://proxy.local:8080", publicBase(req, ""))

	assert.Equal(t, "https://cdn.proxy", publicBase(req, "https://cdn.proxy"))
}
