package parser

import (
	"strings"

	"github.com/grafov/m3u8"
)

// PlaylistKind labels a fetched playlist for logs and metrics.
type PlaylistKind string

const (
	PlaylistMaster  PlaylistKind = "master"
	PlaylistMedia   PlaylistKind = "media"
	PlaylistUnknown PlaylistKind = "unknown"
)

// InspectPlaylist reports whether text is a master or media playlist using a
// non-strict grafov decode. It only labels; rewriting never depends on it, so
// anything grafov rejects is simply "unknown".
func InspectPlaylist(text string) (kind PlaylistKind) {
	defer func() {
		if recover() != nil {
			kind = PlaylistUnknown
		}
	}()

	_, listType, err := m3u8.DecodeFrom(strings.NewReader(strings.TrimPrefix(text, "\uFEFF")), false)
	if err != nil {
		return PlaylistUnknown
	}

	switch listType {
	case m3u8.MASTER:
		return PlaylistMaster
	case m3u8.MEDIA:
		return PlaylistMedia
	default:
		return PlaylistUnknown
	}
}
