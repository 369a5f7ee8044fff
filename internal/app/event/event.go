// Package event provides the Lavalink protocol events and the bus that dispatches them.
package event

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/domain/track"
)

// Event is implemented by every event published on a Bus.
type Event interface {
	Name() string
	event()
}

// GuildEvent is an event scoped to a single guild.
type GuildEvent interface {
	Event
	Guild() snowflake.ID
}

// TrackEndReason is why a track stopped playing.
type TrackEndReason string

const (
	ReasonFinished   TrackEndReason = "finished"
	ReasonLoadFailed TrackEndReason = "loadFailed"
	ReasonStopped    TrackEndReason = "stopped"
	ReasonReplaced   TrackEndReason = "replaced"
	ReasonCleanup    TrackEndReason = "cleanup"
)

// MayStartNext reports whether the next track may be started after this reason.
func (r TrackEndReason) MayStartNext() bool {
	return r == ReasonFinished || r == ReasonLoadFailed
}

// Ready is sent by the node once the websocket session is established.
type Ready struct {
	Session   string
	Resumed   bool
	SessionID string
}

// PlayerUpdate carries the periodic state of a player.
type PlayerUpdate struct {
	Session string
	GuildID snowflake.ID
	State   remote.State
}

// Stats carries node statistics.
type Stats struct {
	Session string
	remote.Statistics
}

// TrackStart is sent when a track starts playing.
type TrackStart struct {
	Session string
	GuildID snowflake.ID
	Track   track.Track
}

// TrackEnd is sent when a track stops playing.
type TrackEnd struct {
	Session string
	GuildID snowflake.ID
	Track   track.Track
	Reason  TrackEndReason
}

// TrackException is sent when a track throws while playing.
type TrackException struct {
	Session   string
	GuildID   snowflake.ID
	Track     track.Track
	Exception remote.TrackException
}

// TrackStuck is sent when a track has not produced audio for the threshold.
type TrackStuck struct {
	Session     string
	GuildID     snowflake.ID
	Track       track.Track
	ThresholdMs int64
}

// WebSocketClosed is sent when the node's voice websocket to Discord closes.
type WebSocketClosed struct {
	Session  string
	GuildID  snowflake.ID
	Code     int
	Reason   string
	ByRemote bool
}

// Payload carries every raw text frame received from a node.
type Payload struct {
	Session string
	Raw     string
}

// QueueEmpty is published when autoplay reaches the end of a queue.
type QueueEmpty struct {
	GuildID  snowflake.ID
	OldTrack track.Track
}

// QueueNext is published when autoplay advances a queue.
type QueueNext struct {
	GuildID  snowflake.ID
	Track    track.Track
	OldTrack track.Track
}

// VoiceStateUpdate is forwarded from the host gateway when the bot's voice state changes.
type VoiceStateUpdate struct {
	GuildID   snowflake.ID
	ChannelID *snowflake.ID
	UserID    snowflake.ID
	SessionID string
}

// VoiceServerUpdate is forwarded from the host gateway with voice server credentials.
type VoiceServerUpdate struct {
	GuildID  snowflake.ID
	Token    string
	Endpoint *string
}

func (Ready) Name() string             { return "ready" }
func (PlayerUpdate) Name() string      { return "playerUpdate" }
func (Stats) Name() string             { return "stats" }
func (TrackStart) Name() string        { return "TrackStartEvent" }
func (TrackEnd) Name() string          { return "TrackEndEvent" }
func (TrackException) Name() string    { return "TrackExceptionEvent" }
func (TrackStuck) Name() string        { return "TrackStuckEvent" }
func (WebSocketClosed) Name() string   { return "WebSocketClosedEvent" }
func (Payload) Name() string           { return "payload" }
func (QueueEmpty) Name() string        { return "queueEmpty" }
func (QueueNext) Name() string         { return "queueNext" }
func (VoiceStateUpdate) Name() string  { return "voiceStateUpdate" }
func (VoiceServerUpdate) Name() string { return "voiceServerUpdate" }

func (Ready) event()             {}
func (PlayerUpdate) event()      {}
func (Stats) event()             {}
func (TrackStart) event()        {}
func (TrackEnd) event()          {}
func (TrackException) event()    {}
func (TrackStuck) event()        {}
func (WebSocketClosed) event()   {}
func (Payload) event()           {}
func (QueueEmpty) event()        {}
func (QueueNext) event()         {}
func (VoiceStateUpdate) event()  {}
func (VoiceServerUpdate) event() {}

func (e PlayerUpdate) Guild() snowflake.ID      { return e.GuildID }
func (e TrackStart) Guild() snowflake.ID        { return e.GuildID }
func (e TrackEnd) Guild() snowflake.ID          { return e.GuildID }
func (e TrackException) Guild() snowflake.ID    { return e.GuildID }
func (e TrackStuck) Guild() snowflake.ID        { return e.GuildID }
func (e WebSocketClosed) Guild() snowflake.ID   { return e.GuildID }
func (e QueueEmpty) Guild() snowflake.ID        { return e.GuildID }
func (e QueueNext) Guild() snowflake.ID         { return e.GuildID }
func (e VoiceStateUpdate) Guild() snowflake.ID  { return e.GuildID }
func (e VoiceServerUpdate) Guild() snowflake.ID { return e.GuildID }
