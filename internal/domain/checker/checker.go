// Package checker tells links to tracks and playlists apart from plain search
// queries. Only YouTube links are recognised.
package checker

import (
	"net/url"
	"strings"
)

// Type is the kind of value a query turned out to be.
type Type int

const (
	TypeQuery Type = iota
	TypeTrack
	TypePlaylist
)

func (t Type) String() string {
	switch t {
	case TypeTrack:
		return "track"
	case TypePlaylist:
		return "playlist"
	default:
		return "query"
	}
}

// SearchPrefix is prepended to plain queries by Identifier.
const SearchPrefix = "ytsearch:"

// Checked is the result of Check.
type Checked struct {
	Value string
	Type  Type
}

// Identifier returns the value to hand to the node's track loader.
func (c Checked) Identifier() string {
	if c.Type == TypeQuery {
		return SearchPrefix + c.Value
	}
	return c.Value
}

var youtubeHosts = map[string]bool{
	"www.youtube.com":   true,
	"youtube.com":       true,
	"www.youtu.be":      true,
	"youtu.be":          true,
	"music.youtube.com": true,
}

// Check inspects query and returns the video or playlist id it links to, or
// the query itself when it is not a recognised link.
func Check(query string) Checked {
	fallback := Checked{Value: query, Type: TypeQuery}

	u, err := url.Parse(strings.TrimSpace(query))
	if err != nil || !youtubeHosts[strings.ToLower(u.Host)] {
		return fallback
	}

	values := u.Query()
	switch u.Path {
	case "/playlist":
		if id := values.Get("list"); id != "" {
			return Checked{Value: id, Type: TypePlaylist}
		}
	case "/watch":
		if id := values.Get("v"); id != "" {
			return Checked{Value: id, Type: TypeTrack}
		}
	default:
		// Short links carry the video id as the path.
		if strings.HasSuffix(u.Host, "youtu.be") {
			if id := strings.Trim(u.Path, "/"); id != "" && !strings.Contains(id, "/") {
				return Checked{Value: id, Type: TypeTrack}
			}
		}
	}
	return fallback
}
