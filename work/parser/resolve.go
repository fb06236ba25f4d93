package parser

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a reference found inside a playlist against the URL the
// playlist was fetched from.
//
// An absolute reference is returned untouched. Anything else is resolved per
// RFC 3986 against the base's directory (the base with its last path segment,
// query and fragment removed), which covers relative-path, absolute-path and
// protocol-relative references.
//
// Resolution never fails: when either side cannot be parsed the reference is
// returned as written and the caller carries on with it.
func ResolveURL(reference, baseURL string) string {
	ref, err := url.Parse(reference)
	if err != nil {
		return reference
	}
	if ref.IsAbs() {
		return reference
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return reference
	}

	return baseDirectory(base).ResolveReference(ref).String()
}

// baseDirectory returns a copy of base pointing at the directory that holds
// the playlist, e.g. https://host/a/master.m3u8?t=1 -> https://host/a/
func baseDirectory(base *url.URL) *url.URL {
	dir := *base
	dir.RawQuery = ""
	dir.ForceQuery = false
	dir.Fragment = ""
	dir.RawFragment = ""

	escaped := base.EscapedPath()
	if i := strings.LastIndex(escaped, "/"); i >= 0 {
		escaped = escaped[:i+1]
	} else {
		escaped = "/"
	}

	if p, err := url.PathUnescape(escaped); err == nil {
		dir.Path = p
		dir.RawPath = escaped
	} else {
		dir.Path = escaped
		dir.RawPath = ""
	}

	return &dir
}
