package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"

	"oxycors/work/client"
	"oxycors/work/metrics"
	"oxycors/work/parser"
	"oxycors/work/utils"
)

// DefaultManifestContentType is used when upstream sends no Content-Type.
const DefaultManifestContentType = "application/vnd.apple.mpegurl"

var errManifestTooLarge = errors.New("manifest exceeds size limit")

// Manifest is a rewritten playlist ready to be written to the client.
//
// BaseURL is the final URL after redirects, which is what relative references
// in Body were resolved against. Kind and Stats describe the playlist for
// logging and metrics only.
type Manifest struct {
	Body        string // rewritten playlist text
	ContentType string // upstream Content-Type, or the HLS default when missing
	BaseURL     string // URL the playlist was actually served from
	Kind        parser.PlaylistKind
	Stats       parser.Stats
	Extracted   bool // requested URL was a hosting page
}

// FetchManifest resolves requested to a playlist, fetches it and rewrites
// every reference to point back at the proxy.
//
// Process:
//   - Validates requested (400 on missing or malformed input).
//   - Hosting-page URLs go through the extractor first (502 when absent).
//   - Non-2xx upstream answers keep their status; network failures are 502.
//   - The body is read up to MaxManifestBytes and rewritten against the final
//     response URL so redirects are honoured.
func (p *Proxy) FetchManifest(ctx context.Context, requested string) (*Manifest, error) {
	target, err := ParseTarget(requested)
	if err != nil {
		return nil, err
	}

	manifestURL := target.String()
	if err := p.checkAllowed(manifestURL); err != nil {
		return nil, err
	}

	extracted := false
	if p.extractor.Matches(target) {
		p.log.Debug("{proxy/manifest - FetchManifest} Hosting page detected, extracting: %s", p.logURL(manifestURL))
		res := p.extractor.Extract(ctx, manifestURL)
		if !res.Found {
			metrics.Extractions.WithLabelValues("absent").Inc()
			return nil, extractionError()
		}
		metrics.Extractions.WithLabelValues("found").Inc()
		manifestURL = res.ManifestURL
		extracted = true
		if err := p.checkAllowed(manifestURL); err != nil {
			return nil, err
		}
	}

	resp, err := p.fetcher.Get(ctx, manifestURL, client.ProfileManifest)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("manifest", KindUpstreamUnreachable.String()).Inc()
		p.log.Error("{proxy/manifest - FetchManifest} Network error for %s: %v", p.logURL(manifestURL), err)
		return nil, unreachableError("manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamErrors.WithLabelValues("manifest", KindUpstreamRejected.String()).Inc()
		p.log.Warn("{proxy/manifest - FetchManifest} Upstream responded %s for %s", resp.Status, p.logURL(manifestURL))
		return nil, rejectedError("manifest", resp)
	}

	body, err := p.readManifest(resp.Body)
	if errors.Is(err, errManifestTooLarge) {
		p.log.Warn("{proxy/manifest - FetchManifest} Manifest over %d bytes: %s", p.Config.MaxManifestBytes, p.logURL(manifestURL))
		return nil, &Error{Kind: KindUpstreamRejected, Status: http.StatusBadGateway, Message: "Failed to fetch manifest: " + errManifestTooLarge.Error()}
	}
	if err != nil {
		p.log.Error("{proxy/manifest - FetchManifest} Error reading body of %s: %v", p.logURL(manifestURL), err)
		return nil, internalError("Failed to read manifest body", err)
	}

	// the final URL after redirects is the base every relative reference resolves against
	base := manifestURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}

	text := string(body)
	rewritten, stats := p.rewriter.RewriteWithStats(text, base)
	kind := parser.InspectPlaylist(text)

	metrics.PlaylistsRewritten.WithLabelValues(string(kind)).Inc()
	metrics.URIsRewritten.WithLabelValues(string(parser.RouteManifest)).Add(float64(stats.SubPlaylists))
	metrics.URIsRewritten.WithLabelValues(string(parser.RouteSegment)).Add(float64(stats.Segments))

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultManifestContentType
	}

	p.log.Debug("{proxy/manifest - FetchManifest} Rewrote %s playlist %s (%d sub-playlists, %d segments, extracted: %v)",
		kind, p.logURL(base), stats.SubPlaylists, stats.Segments, extracted)

	return &Manifest{
		Body:        rewritten,
		ContentType: contentType,
		BaseURL:     base,
		Kind:        kind,
		Stats:       stats,
		Extracted:   extracted,
	}, nil
}

func (p *Proxy) readManifest(r io.Reader) ([]byte, error) {
	limit := p.Config.MaxManifestBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errManifestTooLarge
	}
	return body, nil
}

func (p *Proxy) logURL(u string) string {
	return utils.LogURL(p.Config.ObfuscateUrls, u)
}
