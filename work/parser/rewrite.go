package parser

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/grafana/regexp"

	"oxycors/work/logger"
	"oxycors/work/utils"
)

// LineKind classifies a single trimmed playlist line.
type LineKind int

const (
	LineCommentOrBlank   LineKind = iota // blank, comment or an unrecognized tag
	LineDirectiveNoURI                   // recognized tag without a URI attribute
	LineDirectiveWithURI                 // recognized tag carrying URI="..."
	LineURI                              // bare reference to a segment or sub-playlist
)

func (k LineKind) String() string {
	switch k {
	case LineDirectiveNoURI:
		return "directive-no-uri"
	case LineDirectiveWithURI:
		return "directive-with-uri"
	case LineURI:
		return "uri-line"
	default:
		return "comment-or-blank"
	}
}

// Route selects which proxy endpoint a rewritten reference points at.
type Route string

const (
	RouteManifest Route = "manifest"
	RouteSegment  Route = "segment"
)

// PlaylistLine is one line of a playlist during a single rewrite pass.
type PlaylistLine struct {
	Raw       string   // trimmed line text
	Kind      LineKind // classification
	Directive string   // tag name without '#', set for directive kinds
	URI       string   // URI attribute value, set for LineDirectiveWithURI
	uriStart  int      // byte offsets of URI within Raw
	uriEnd    int
}

// RewriteContext carries the base URL for one playlist fetch. It is built once
// per rewrite pass and never changed while the pass runs.
type RewriteContext struct {
	BaseURL string
}

// Stats summarizes a rewrite pass for logging and metrics.
type Stats struct {
	Lines        int
	SubPlaylists int
	Segments     int
}

// uriAttr matches a URI attribute; the leading delimiter keeps KEYFORMATURI-style names out.
var uriAttr = regexp.MustCompile(`(?:^|[:,\s])URI="([^"]+)"`)

// Rewriter rewrites playlist references so they route back through the proxy.
// A Rewriter holds configuration only and is safe for concurrent use.
type Rewriter struct {
	directives   map[string]bool
	subPlaylists map[string]bool
	prefix       string
	obfuscate    bool
	log          logger.Interface
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithDirectives replaces the set of tags scanned for URI attributes.
func WithDirectives(names []string) Option {
	return func(r *Rewriter) { r.directives = directiveSet(names) }
}

// WithSubPlaylistDirectives replaces the set of tags whose .m3u8 URIs are
// routed through the manifest endpoint.
func WithSubPlaylistDirectives(names []string) Option {
	return func(r *Rewriter) { r.subPlaylists = directiveSet(names) }
}

// WithPrefix sets the path placed in front of /manifest and /segment.
func WithPrefix(prefix string) Option {
	return func(r *Rewriter) { r.prefix = strings.TrimRight(prefix, "/") }
}

// WithLogger gives the rewriter somewhere to write debug output.
func WithLogger(l logger.Interface, obfuscate bool) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.log = l
		}
		r.obfuscate = obfuscate
	}
}

// NewRewriter builds a Rewriter with the standard directive sets unless
// overridden by opts.
func NewRewriter(opts ...Option) *Rewriter {
	r := &Rewriter{
		directives: directiveSet([]string{
			"EXT-X-STREAM-INF", "EXT-X-I-FRAME-STREAM-INF", "EXT-X-MEDIA", "EXT-X-KEY", "EXT-X-MAP",
		}),
		subPlaylists: directiveSet([]string{
			"EXT-X-STREAM-INF", "EXT-X-I-FRAME-STREAM-INF", "EXT-X-MEDIA",
		}),
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns text with every reference replaced by a proxied URI.
// The output always has exactly as many lines as the input.
func (r *Rewriter) Rewrite(text, baseURL string) string {
	out, _ := r.RewriteWithStats(text, baseURL)
	return out
}

// RewriteWithStats is Rewrite plus a count of what was routed where.
func (r *Rewriter) RewriteWithStats(text, baseURL string) (string, Stats) {
	rc := RewriteContext{BaseURL: baseURL}
	lines := strings.Split(text, "\n")
	stats := Stats{Lines: len(lines)}

	for i, raw := range lines {
		line := r.ClassifyLine(raw)

		switch line.Kind {
		case LineDirectiveWithURI:
			route := r.route(line.Directive, line.URI)
			proxied := ProxiedURI(r.prefix, route, ResolveURL(line.URI, rc.BaseURL))
			lines[i] = line.Raw[:line.uriStart] + proxied + line.Raw[line.uriEnd:]
			stats.count(route)
		case LineURI:
			route := r.route("", line.Raw)
			lines[i] = ProxiedURI(r.prefix, route, ResolveURL(line.Raw, rc.BaseURL))
			stats.count(route)
		default:
			lines[i] = line.Raw
		}
	}

	r.log.Debug("{parser/rewrite - Rewrite} Rewrote %d lines (%d sub-playlists, %d segments) against %s",
		stats.Lines, stats.SubPlaylists, stats.Segments, utils.LogURL(r.obfuscate, baseURL))

	return strings.Join(lines, "\n"), stats
}

// ClassifyLine trims raw and decides how the rewriter treats it. A leading
// byte order mark counts as whitespace.
func (r *Rewriter) ClassifyLine(raw string) PlaylistLine {
	line := PlaylistLine{Raw: strings.TrimFunc(raw, isSpaceOrBOM)}

	if line.Raw == "" {
		line.Kind = LineCommentOrBlank
		return line
	}
	if !strings.HasPrefix(line.Raw, "#") {
		line.Kind = LineURI
		return line
	}

	name := tagName(line.Raw)
	if !r.directives[name] {
		line.Kind = LineCommentOrBlank
		return line
	}
	line.Directive = name

	m := uriAttr.FindStringSubmatchIndex(line.Raw)
	if m == nil {
		line.Kind = LineDirectiveNoURI
		return line
	}

	line.Kind = LineDirectiveWithURI
	line.uriStart, line.uriEnd = m[2], m[3]
	line.URI = line.Raw[m[2]:m[3]]
	return line
}

// route applies the sub-playlist rule to the reference exactly as the
// playlist author wrote it, before any resolution. An empty directive means a
// bare reference line.
func (r *Rewriter) route(directive, reference string) Route {
	if directive != "" && !r.subPlaylists[directive] {
		return RouteSegment
	}
	if utils.HasSuffixFold(reference, ".m3u8") {
		return RouteManifest
	}
	return RouteSegment
}

// ProxiedURI builds {prefix}/{route}?url=<absolute> with the absolute URL
// percent-encoded the way browsers' encodeURIComponent does for spaces.
func ProxiedURI(prefix string, route Route, absolute string) string {
	return prefix + "/" + string(route) + "?url=" + strings.ReplaceAll(url.QueryEscape(absolute), "+", "%20")
}

// tagName returns the tag of a '#' line, e.g. "#EXT-X-KEY:METHOD=NONE" -> "EXT-X-KEY".
// Tag names are case-sensitive and returned as written.
func tagName(line string) string {
	name := strings.TrimPrefix(line, "#")
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func isSpaceOrBOM(r rune) bool {
	return r == '\uFEFF' || unicode.IsSpace(r)
}

func directiveSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "#")))
		if n != "" {
			set[n] = true
		}
	}
	return set
}

func (s *Stats) count(route Route) {
	if route == RouteManifest {
		s.SubPlaylists++
	} else {
		s.Segments++
	}
}
