package extractor

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/grafana/regexp"

	"oxycors/work/client"
	"oxycors/work/logger"
	"oxycors/work/utils"
)

// maxPageBytes bounds how much of a hosting page is scanned.
const maxPageBytes = 8 << 20

// manifestPatterns are tried in order. The second matches the copy of the
// player config that is embedded inside a JSON string literal.
var manifestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"hlsManifestUrl":"(https:[^"]+\.m3u8[^"]*)"`),
	regexp.MustCompile(`\\"hlsManifestUrl\\":\\"(https:[^"]+\.m3u8[^"]*)\\"`),
}

var unescaper = strings.NewReplacer(`\u0026`, "&", `\/`, "/")

// HLSPageExtractor scrapes the hlsManifestUrl field out of a hosting page.
//
// It only claims URLs whose host is one of hosts or a subdomain of one. The
// page is fetched with the page header profile and searched with
// FindManifestURL. Fetch failures and pages without a manifest both come back
// as Absent and are logged at debug level.
type HLSPageExtractor struct {
	hosts     []string
	fetcher   Fetcher
	log       logger.Interface
	obfuscate bool
}

// NewHLSPageExtractor matches pages served from any of hosts or their
// subdomains. Hosts are compared case-insensitively.
func NewHLSPageExtractor(hosts []string, fetcher Fetcher, log logger.Interface, obfuscate bool) *HLSPageExtractor {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			normalized = append(normalized, h)
		}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &HLSPageExtractor{
		hosts:     normalized,
		fetcher:   fetcher,
		log:       log,
		obfuscate: obfuscate,
	}
}

func (e *HLSPageExtractor) Matches(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range e.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Extract fetches pageURL with browser headers and searches it for the
// playlist URL.
func (e *HLSPageExtractor) Extract(ctx context.Context, pageURL string) Result {
	logURL := utils.LogURL(e.obfuscate, pageURL)

	resp, err := e.fetcher.Get(ctx, pageURL, client.ProfilePage)
	if err != nil {
		e.log.Error("{extractor/hlspage - Extract} Failed to fetch page %s: %v", logURL, err)
		return Absent
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.log.Error("{extractor/hlspage - Extract} Page %s returned %d %s", logURL, resp.StatusCode, http.StatusText(resp.StatusCode))
		return Absent
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		e.log.Error("{extractor/hlspage - Extract} Failed to read page %s: %v", logURL, err)
		return Absent
	}

	manifest, ok := FindManifestURL(string(body))
	if !ok {
		e.log.Warn("{extractor/hlspage - Extract} No HLS manifest in page %s", logURL)
		return Absent
	}

	e.log.Debug("{extractor/hlspage - Extract} Extracted manifest %s from %s", utils.LogURL(e.obfuscate, manifest), logURL)
	return Result{ManifestURL: manifest, Found: true}
}

// FindManifestURL searches html for the first pattern that matches and
// returns the unescaped URL.
func FindManifestURL(html string) (string, bool) {
	for _, re := range manifestPatterns {
		if m := re.FindStringSubmatch(html); m != nil && m[1] != "" {
			return unescaper.Replace(m[1]), true
		}
	}
	return "", false
}
