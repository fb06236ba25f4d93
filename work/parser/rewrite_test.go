package parser

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewritePreservesLineCount(t *testing.T) {
	inputs := []string{
		"",
		"\n\n",
		testMasterPlaylist,
		testMediaPlaylist,
		"#EXTM3U\r\nseg.ts\r\n",
		"no newline at all",
	}

	r := NewRewriter()
	for _, in := range inputs {
		out := r.Rewrite(in, "https://host/a/master.m3u8")
		assert.Equal(t, strings.Count(in, "\n"), strings.Count(out, "\n"), "input %q", in)
	}
}

func TestRewritePassesThroughBlankAndComments(t *testing.T) {
	lines := []string{
		"",
		"#EXTM3U",
		"#EXTINF:9.009,",
		"# just a comment",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:42",
		`#EXT-X-SESSION-KEY:METHOD=AES-128,URI="k.bin"`,
		"#EXT-X-STREAM-INF:BANDWIDTH=1280000,CODECS=\"avc1.4d401f\"",
	}
	in := strings.Join(lines, "\n")

	out := NewRewriter().Rewrite(in, "https://host/a/master.m3u8")
	assert.Equal(t, in, out)
}

func TestRewriteKeyRoutesToSegment(t *testing.T) {
	out := NewRewriter().Rewrite(`#EXT-X-KEY:METHOD=AES-128,URI="key.bin"`, "https://host/path/master.m3u8")

	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="/segment?url=https%3A%2F%2Fhost%2Fpath%2Fkey.bin"`, out)
}

func TestRewriteBareSubPlaylist(t *testing.T) {
	out := NewRewriter().Rewrite("720p.m3u8", "https://host/a/master.m3u8")
	assert.Equal(t, "/manifest?url=https%3A%2F%2Fhost%2Fa%2F720p.m3u8", out)
}

func TestRewriteBareSegment(t *testing.T) {
	out := NewRewriter().Rewrite("seg001.ts", "https://host/a/master.m3u8")
	assert.True(t, strings.HasPrefix(out, "/segment?url="), out)
	assert.Equal(t, "/segment?url=https%3A%2F%2Fhost%2Fa%2Fseg001.ts", out)
}

func TestRewriteMasterPlaylist(t *testing.T) {
	out := NewRewriter().Rewrite(testMasterPlaylist, "https://origin.example/live/master.m3u8")
	lines := strings.Split(out, "\n")

	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",DEFAULT=YES,URI="/manifest?url=https%3A%2F%2Forigin.example%2Flive%2Faudio%2Fen.m3u8"`, lines[3])
	assert.Equal(t, "#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360,AUDIO=\"aud\"", lines[4])
	assert.Equal(t, "/manifest?url=https%3A%2F%2Forigin.example%2Flive%2F360p.m3u8", lines[5])
	assert.Equal(t, "/segment?url=https%3A%2F%2Fcdn.example.com%2Fhd%2F720p.m3u8%3Ftoken%3Dabc", lines[7],
		"routing uses the reference as written, and this one does not end in .m3u8")
	assert.Equal(t, `#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=86000,URI="/manifest?url=https%3A%2F%2Forigin.example%2Flive%2Fiframes%2F360p.M3U8"`, lines[8])
}

func TestRewriteMediaPlaylist(t *testing.T) {
	out, stats := NewRewriter().RewriteWithStats(testMediaPlaylist, "https://origin.example/vod/a/index.m3u8")
	lines := strings.Split(out, "\n")

	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="/segment?url=https%3A%2F%2Forigin.example%2Fvod%2Fa%2Fkeys%2Fkey.bin",IV=0x00000000000000000000000000000001`, lines[4])
	assert.Equal(t, `#EXT-X-MAP:URI="/segment?url=https%3A%2F%2Forigin.example%2Fvod%2Fa%2Finit.mp4"`, lines[5])
	assert.Equal(t, "/segment?url=https%3A%2F%2Forigin.example%2Fvod%2Fa%2Fsegment0.m4s", lines[7])
	assert.Equal(t, "/segment?url=https%3A%2F%2Forigin.example%2Fabs%2Fsegment1.m4s", lines[9])
	assert.Equal(t, "/segment?url=https%3A%2F%2Fedge.example.com%2Fsegment2.m4s", lines[11])
	assert.Equal(t, "#EXT-X-ENDLIST", lines[12])

	assert.Equal(t, 0, stats.SubPlaylists)
	assert.Equal(t, 5, stats.Segments)
	assert.Equal(t, 14, stats.Lines)
}

func TestRewriteMapAndKeyNeverRouteToManifest(t *testing.T) {
	out := NewRewriter().Rewrite(`#EXT-X-MAP:URI="init.m3u8"`+"\n"+`#EXT-X-KEY:METHOD=AES-128,URI="key.m3u8"`, "https://h/p/x.m3u8")
	for _, line := range strings.Split(out, "\n") {
		assert.Contains(t, line, `URI="/segment?url=`)
	}
}

func TestRewriteTrimsLines(t *testing.T) {
	out := NewRewriter().Rewrite("  #EXTM3U  \n\tseg.ts \r", "https://h/p/x.m3u8")
	assert.Equal(t, "#EXTM3U\n/segment?url=https%3A%2F%2Fh%2Fp%2Fseg.ts", out)
}

func TestRewriteMalformedURIStillWrapped(t *testing.T) {
	out := NewRewriter().Rewrite("%zz.ts\n"+`#EXT-X-KEY:METHOD=AES-128,URI="%zz"`, "https://h/p/x.m3u8")
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 2)
	assert.Equal(t, "/segment?url=%25zz.ts", lines[0])
	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="/segment?url=%25zz"`, lines[1])
}

func TestRewriteAlreadyRewrittenLineIsStable(t *testing.T) {
	base := "https://proxy.example/x/list.m3u8"
	first := NewRewriter().Rewrite("seg.ts", "https://origin.example/a/list.m3u8")

	var second string
	require.NotPanics(t, func() { second = NewRewriter().Rewrite(first, base) })

	require.True(t, strings.HasPrefix(second, "/segment?url="))
	inner, err := url.QueryUnescape(strings.TrimPrefix(second, "/segment?url="))
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example"+first, inner)

	third := NewRewriter().Rewrite(second, base)
	assert.True(t, strings.HasPrefix(third, "/segment?url="))
	assert.Greater(t, len(third), len(second))
}

func TestRewriteWithPrefix(t *testing.T) {
	r := NewRewriter(WithPrefix("/api/proxy/"))
	assert.Equal(t, "/api/proxy/manifest?url=https%3A%2F%2Fh%2Fp%2Fv.m3u8", r.Rewrite("v.m3u8", "https://h/p/x.m3u8"))
}

func TestRewriteConfigurableDirectives(t *testing.T) {
	in := `#EXT-X-MAP:URI="init.mp4"` + "\n" + `#EXT-X-SESSION-DATA:DATA-ID="x",URI="data.m3u8"`
	r := NewRewriter(
		WithDirectives([]string{"#EXT-X-SESSION-DATA"}),
		WithSubPlaylistDirectives([]string{"EXT-X-SESSION-DATA"}),
	)

	lines := strings.Split(r.Rewrite(in, "https://h/p/x.m3u8"), "\n")
	assert.Equal(t, `#EXT-X-MAP:URI="init.mp4"`, lines[0])
	assert.Equal(t, `#EXT-X-SESSION-DATA:DATA-ID="x",URI="/manifest?url=https%3A%2F%2Fh%2Fp%2Fdata.m3u8"`, lines[1])
}

func TestRewriteStripsByteOrderMark(t *testing.T) {
	in := "\uFEFF#EXTM3U\n#EXT-X-VERSION:3\nseg.ts"

	lines := strings.Split(NewRewriter().Rewrite(in, "https://h/p/x.m3u8"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXT-X-VERSION:3", lines[1])
	assert.Equal(t, "/segment?url=https%3A%2F%2Fh%2Fp%2Fseg.ts", lines[2])
}

func TestRewriteTagNamesAreCaseSensitive(t *testing.T) {
	in := `#ext-x-key:METHOD=AES-128,URI="k.bin"` + "\n" + `#Ext-X-Map:URI="init.mp4"`

	out := NewRewriter().Rewrite(in, "https://h/p/x.m3u8")
	assert.Equal(t, in, out)
}

func TestClassifyLine(t *testing.T) {
	r := NewRewriter()

	tests := []struct {
		raw       string
		kind      LineKind
		directive string
		uri       string
	}{
		{"", LineCommentOrBlank, "", ""},
		{"   ", LineCommentOrBlank, "", ""},
		{"#EXTINF:10,", LineCommentOrBlank, "", ""},
		{"#EXT-X-MEDIA-SEQUENCE:1", LineCommentOrBlank, "", ""},
		{"#EXT-X-STREAM-INF:BANDWIDTH=1", LineDirectiveNoURI, "EXT-X-STREAM-INF", ""},
		{`#EXT-X-KEY:METHOD=SAMPLE-AES,KEYFORMATURI="x",URI="k"`, LineDirectiveWithURI, "EXT-X-KEY", "k"},
		{`#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"`, LineDirectiveWithURI, "EXT-X-MAP", "init.mp4"},
		{"seg.ts", LineURI, "", ""},
		{"\uFEFF#EXTM3U", LineCommentOrBlank, "", ""},
		{"\uFEFF", LineCommentOrBlank, "", ""},
		{`#ext-x-key:URI="k"`, LineCommentOrBlank, "", ""},
	}

	for _, tt := range tests {
		line := r.ClassifyLine(tt.raw)
		assert.Equal(t, tt.kind, line.Kind, tt.raw)
		assert.Equal(t, tt.directive, line.Directive, tt.raw)
		assert.Equal(t, tt.uri, line.URI, tt.raw)
	}
}

func TestLineKindString(t *testing.T) {
	assert.Equal(t, "comment-or-blank", LineCommentOrBlank.String())
	assert.Equal(t, "directive-no-uri", LineDirectiveNoURI.String())
	assert.Equal(t, "directive-with-uri", LineDirectiveWithURI.String())
	assert.Equal(t, "uri-line", LineURI.String())
}

func TestProxiedURIEncodesLikeEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "/segment?url=https%3A%2F%2Fh%2Fa%20b%2Bc", ProxiedURI("", RouteSegment, "https://h/a b+c"))
	assert.Equal(t, "/p/manifest?url=x", ProxiedURI("/p", RouteManifest, "x"))
}
