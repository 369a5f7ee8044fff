// Package remote provides snapshots of state reported by a Lavalink node.
package remote

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/lavabox/internal/domain/filters"
	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/domain/track"
)

// State is the playback state of a player as seen by the node.
type State struct {
	Time      payload.Millis `json:"time"`      // node time of the update
	Position  int64          `json:"position"`  // milliseconds into the track
	Connected bool           `json:"connected"` // voice connection is up
	Ping      int            `json:"ping"`      // -1 when not connected
}

// Voice holds the Discord voice server credentials of a player.
type Voice struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// Complete reports whether the voice credentials can be sent to a node.
func (v Voice) Complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

// Player is the node's view of a guild player.
type Player struct {
	GuildID snowflake.ID     `json:"guildId" validate:"required"`
	Track   *track.Track     `json:"track"`
	Volume  int              `json:"volume"`
	Paused  bool             `json:"paused"`
	State   State            `json:"state"`
	Voice   Voice            `json:"voice"`
	Filters *filters.Filters `json:"filters"`
}

// DecodePlayer builds a Player from a raw payload.
func DecodePlayer(data []byte) (Player, error) {
	var p Player
	if err := payload.Decode(data, &p); err != nil {
		return Player{}, err
	}
	return p, nil
}

// DecodeState builds a State from a raw payload.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := payload.Decode(data, &s); err != nil {
		return State{}, err
	}
	return s, nil
}
