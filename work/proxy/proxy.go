package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"oxycors/work/buffer"
	"oxycors/work/client"
	"oxycors/work/config"
	"oxycors/work/extractor"
	"oxycors/work/filter"
	"oxycors/work/logger"
	"oxycors/work/parser"
)

// Fetcher issues upstream GETs with a header profile.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, profile client.Profile) (*http.Response, error)
}

// Proxy implements the manifest, segment and extraction operations. It holds
// configuration and shared collaborators only; nothing request-scoped lives
// here, so one Proxy serves all requests concurrently.
type Proxy struct {
	Config     *config.Config
	fetcher    Fetcher
	extractor  extractor.PageManifestExtractor
	rewriter   *parser.Rewriter
	bufferPool *buffer.BufferPool
	filter     *filter.URLFilter
	log        logger.Interface
}

// New creates a Proxy. A nil extractor disables page extraction and a nil
// logger discards output.
func New(cfg *config.Config, fetcher Fetcher, ext extractor.PageManifestExtractor, rewriter *parser.Rewriter, bufferPool *buffer.BufferPool, log logger.Interface) *Proxy {
	if ext == nil {
		ext = extractor.Disabled{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if bufferPool == nil {
		bufferPool = buffer.NewBufferPool(buffer.DefaultCopySize)
	}

	urlFilter := filter.NewURLFilter(cfg.UpstreamIncludeRegex, cfg.UpstreamExcludeRegex, log)
	if urlFilter.Active() {
		log.Info("{proxy/proxy - New} Upstream filter enabled (include: %q, exclude: %q)",
			cfg.UpstreamIncludeRegex, cfg.UpstreamExcludeRegex)
	}

	return &Proxy{
		Config:     cfg,
		fetcher:    fetcher,
		extractor:  ext,
		rewriter:   rewriter,
		bufferPool: bufferPool,
		filter:     urlFilter,
		log:        log,
	}
}

// checkAllowed refuses upstream URLs rejected by the configured filter.
func (p *Proxy) checkAllowed(rawURL string) error {
	if p.filter.Allowed(rawURL) {
		return nil
	}
	p.log.Warn("{proxy/proxy - checkAllowed} Refusing filtered upstream: %s", p.logURL(rawURL))
	return forbiddenError()
}

// ParseTarget validates the url query parameter. Only absolute http and https
// URLs with a host are accepted.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, clientInputError(MsgMissingURL, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, clientInputError(MsgInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, clientInputError(MsgInvalidURL, nil)
	}
	return u, nil
}
