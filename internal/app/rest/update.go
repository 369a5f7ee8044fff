package rest

import (
	"encoding/json"

	"github.com/osa030/lavabox/internal/domain/filters"
	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/domain/track"
)

// PlayerUpdate is a partial update of a node player. Only set fields are sent.
type PlayerUpdate struct {
	Position *int64 // milliseconds
	EndTime  *int64 // milliseconds
	Volume   *int
	Paused   *bool
	Voice    *remote.Voice

	track      *track.Track
	trackSet   bool
	filters    *filters.Filters
	filtersSet bool
}

// WithTrack sets the track to play. A nil track stops playback.
func (u PlayerUpdate) WithTrack(t *track.Track) PlayerUpdate {
	u.track = t
	u.trackSet = true
	return u
}

// WithFilters sets the filters. Nil filters are cleared on the node.
func (u PlayerUpdate) WithFilters(f *filters.Filters) PlayerUpdate {
	u.filters = f
	u.filtersSet = true
	return u
}

// Empty reports whether the update would change nothing.
func (u PlayerUpdate) Empty() bool {
	return !u.trackSet && !u.filtersSet &&
		u.Position == nil && u.EndTime == nil && u.Volume == nil && u.Paused == nil && u.Voice == nil
}

type trackUpdate struct {
	Encoded  *string        `json:"encoded"`
	UserData map[string]any `json:"userData,omitempty"`
}

func (u PlayerUpdate) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)

	if u.trackSet {
		if u.track == nil {
			body["track"] = trackUpdate{}
		} else {
			encoded := u.track.Encoded
			body["track"] = trackUpdate{Encoded: &encoded, UserData: u.track.WireUserData()}
		}
	}
	if u.Position != nil {
		body["position"] = *u.Position
	}
	if u.EndTime != nil {
		body["endTime"] = *u.EndTime
	}
	if u.Volume != nil {
		body["volume"] = *u.Volume
	}
	if u.Paused != nil {
		body["paused"] = *u.Paused
	}
	if u.filtersSet {
		body["filters"] = u.filters
	}
	if u.Voice != nil {
		body["voice"] = u.Voice
	}
	return json.Marshal(body)
}
