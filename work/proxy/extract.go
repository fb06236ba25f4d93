package proxy

import (
	"context"

	"oxycors/work/metrics"
	"oxycors/work/parser"
)

// Extraction is the JSON answer of the extraction endpoint.
//
// ResponseURL echoes the hosting page that was scraped, ManifestURL is the
// playlist found in it, and ProxyURL is that playlist already routed through
// the manifest endpoint so a player can load it directly.
type Extraction struct {
	ResponseURL string `json:"responseUrl"` // hosting page that was fetched
	ManifestURL string `json:"manifestUrl"` // upstream playlist found in the page
	ProxyURL    string `json:"proxyUrl"`    // absolute link to /manifest for ManifestURL
}

// ExtractPage runs the extractor against a hosting-page URL and reports the
// playlist it found along with a ready-to-use proxied link. publicBase is the
// externally visible origin of the proxy, e.g. "https://proxy.example.com".
func (p *Proxy) ExtractPage(ctx context.Context, pageURL, publicBase string) (*Extraction, error) {
	target, err := ParseTarget(pageURL)
	if err != nil {
		return nil, err
	}
	if !p.extractor.Matches(target) {
		return nil, clientInputError(MsgUnsupportedPage, nil)
	}
	if err := p.checkAllowed(target.String()); err != nil {
		return nil, err
	}

	res := p.extractor.Extract(ctx, target.String())
	if !res.Found {
		metrics.Extractions.WithLabelValues("absent").Inc()
		return nil, extractionError()
	}
	metrics.Extractions.WithLabelValues("found").Inc()

	p.log.Info("{proxy/extract - ExtractPage} Extracted HLS manifest from %s", p.logURL(target.String()))

	return &Extraction{
		ResponseURL: target.String(),
		ManifestURL: res.ManifestURL,
		ProxyURL:    parser.ProxiedURI(publicBase+p.Config.ProxyPrefix, parser.RouteManifest, res.ManifestURL),
	}, nil
}
