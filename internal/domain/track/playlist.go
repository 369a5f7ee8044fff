package track

import (
	"encoding/json"

	"github.com/osa030/lavabox/internal/domain/payload"
)

// PlaylistInfo describes a playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"` // -1 when no track is selected
}

// Playlist is an ordered set of tracks loaded from a single identifier.
type Playlist struct {
	Info       PlaylistInfo   `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo"`
	Tracks     []Track        `json:"tracks"`
}

// DecodePlaylist builds a Playlist from a raw payload.
func DecodePlaylist(data []byte) (Playlist, error) {
	var p Playlist
	if err := payload.Decode(data, &p); err != nil {
		return Playlist{}, err
	}
	return p, nil
}

// Selected returns the selected track, if the playlist has one.
func (p *Playlist) Selected() (Track, bool) {
	i := p.Info.SelectedTrack
	if i < 0 || i >= len(p.Tracks) {
		return Track{}, false
	}
	return p.Tracks[i], true
}

// TotalLength returns the summed length of all tracks in milliseconds.
func (p *Playlist) TotalLength() int64 {
	var total int64
	for _, t := range p.Tracks {
		total += t.Info.Length
	}
	return total
}

// LoadType is the kind of result returned by a track load.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the outcome of a track load. Exactly one of Track, Tracks or
// Playlist is set depending on Type.
type LoadResult struct {
	Type     LoadType
	Track    *Track
	Tracks   []Track
	Playlist *Playlist
}

// Empty reports whether nothing was found.
func (r LoadResult) Empty() bool {
	return r.Track == nil && r.Playlist == nil && len(r.Tracks) == 0
}

// All flattens the result into a track list.
func (r LoadResult) All() []Track {
	switch {
	case r.Track != nil:
		return []Track{*r.Track}
	case r.Playlist != nil:
		return r.Playlist.Tracks
	default:
		return r.Tracks
	}
}

// RawLoadResult is the wire envelope of a load result before its data is decoded.
type RawLoadResult struct {
	LoadType LoadType        `json:"loadType" validate:"required"`
	Data     json.RawMessage `json:"data"`
}
