// Package extractor recovers a live HLS playlist URL from the HTML of a
// video-hosting page. Implementations sit behind PageManifestExtractor so the
// manifest endpoint never depends on one site's markup.
package extractor

import (
	"context"
	"net/http"
	"net/url"

	"oxycors/work/client"
)

// Result is the outcome of an extraction. ManifestURL is only meaningful when
// Found is true.
type Result struct {
	ManifestURL string
	Found       bool
}

// Absent is the zero Result.
var Absent = Result{}

// PageManifestExtractor decides whether a URL is a hosting page and, if so,
// digs the playlist URL out of it. Extract never returns an error: every
// failure is reported as an absent Result.
type PageManifestExtractor interface {
	Matches(u *url.URL) bool
	Extract(ctx context.Context, pageURL string) Result
}

// Fetcher is the slice of the outbound client an extractor needs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, profile client.Profile) (*http.Response, error)
}

// Disabled never matches, so every URL is fetched as a playlist.
type Disabled struct{}

func (Disabled) Matches(*url.URL) bool { return false }

func (Disabled) Extract(context.Context, string) Result { return Absent }

var (
	_ PageManifestExtractor = Disabled{}
	_ PageManifestExtractor = (*HLSPageExtractor)(nil)
)
