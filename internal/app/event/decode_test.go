package event

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/domain/remote"
)

const trackJSON = `{"encoded": "QAAAjQ", "info": {"identifier": "abc", "title": "Song", "length": 1000}, "pluginInfo": {}, "userData": {}}`

func TestDecode(t *testing.T) {
	guild := snowflake.ID(123)

	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, e Event)
	}{
		{
			name:  "ready",
			frame: `{"op": "ready", "resumed": true, "sessionId": "la3kfsdf5eafe848"}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, Ready{Session: "main", Resumed: true, SessionID: "la3kfsdf5eafe848"}, e)
			},
		},
		{
			name:  "player update",
			frame: `{"op": "playerUpdate", "guildId": "123", "state": {"time": 1500467109, "position": 60000, "connected": true, "ping": 50}}`,
			check: func(t *testing.T, e Event) {
				u, ok := e.(PlayerUpdate)
				require.True(t, ok)
				assert.Equal(t, guild, u.GuildID)
				assert.Equal(t, int64(60000), u.State.Position)
				assert.True(t, u.State.Connected)
			},
		},
		{
			name:  "stats",
			frame: `{"op": "stats", "players": 2, "playingPlayers": 1, "uptime": 10, "memory": {}, "cpu": {"cores": 4}}`,
			check: func(t *testing.T, e Event) {
				s, ok := e.(Stats)
				require.True(t, ok)
				assert.Equal(t, 2, s.Players)
				assert.Equal(t, 4, s.CPU.Cores)
				assert.Nil(t, s.FrameStats)
			},
		},
		{
			name:  "track start",
			frame: `{"op": "event", "type": "TrackStartEvent", "guildId": "123", "track": ` + trackJSON + `}`,
			check: func(t *testing.T, e Event) {
				s, ok := e.(TrackStart)
				require.True(t, ok)
				assert.Equal(t, "QAAAjQ", s.Track.Encoded)
			},
		},
		{
			name:  "track end",
			frame: `{"op": "event", "type": "TrackEndEvent", "guildId": "123", "track": ` + trackJSON + `, "reason": "loadFailed"}`,
			check: func(t *testing.T, e Event) {
				end, ok := e.(TrackEnd)
				require.True(t, ok)
				assert.Equal(t, ReasonLoadFailed, end.Reason)
				assert.True(t, end.Reason.MayStartNext())
				assert.Equal(t, guild, end.Guild())
			},
		},
		{
			name:  "track exception",
			frame: `{"op": "event", "type": "TrackExceptionEvent", "guildId": "123", "track": ` + trackJSON + `, "exception": {"message": "boom", "severity": "suspicious", "cause": "java.lang.Exception"}}`,
			check: func(t *testing.T, e Event) {
				ex, ok := e.(TrackException)
				require.True(t, ok)
				assert.Equal(t, remote.SeveritySuspicious, ex.Exception.Severity)
				assert.Equal(t, "boom", *ex.Exception.Message)
			},
		},
		{
			name:  "track stuck",
			frame: `{"op": "event", "type": "TrackStuckEvent", "guildId": "123", "track": ` + trackJSON + `, "thresholdMs": 123456789}`,
			check: func(t *testing.T, e Event) {
				stuck, ok := e.(TrackStuck)
				require.True(t, ok)
				assert.Equal(t, int64(123456789), stuck.ThresholdMs)
			},
		},
		{
			name:  "websocket closed",
			frame: `{"op": "event", "type": "WebSocketClosedEvent", "guildId": "123", "code": 4006, "reason": "Your session is no longer valid.", "byRemote": true}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, WebSocketClosed{
					Session:  "main",
					GuildID:  guild,
					Code:     4006,
					Reason:   "Your session is no longer valid.",
					ByRemote: true,
				}, e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode("main", []byte(tt.frame))
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{name: "unknown op", frame: `{"op": "dance"}`, wantErr: ErrUnknownOp},
		{name: "unknown event type", frame: `{"op": "event", "type": "TrackDanceEvent", "guildId": "1"}`, wantErr: ErrUnknownEvent},
		{name: "not an object", frame: `["op", "ready"]`},
		{name: "missing op", frame: `{"sessionId": "abc"}`},
		{name: "bad end reason", frame: `{"op": "event", "type": "TrackEndEvent", "guildId": "1", "track": ` + trackJSON + `, "reason": "bored"}`},
		{name: "missing session id", frame: `{"op": "ready", "resumed": false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("main", []byte(tt.frame))
			require.Error(t, err)

			var buildErr *payload.BuildError
			assert.ErrorAs(t, err, &buildErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTrackEndReason_MayStartNext(t *testing.T) {
	assert.True(t, ReasonFinished.MayStartNext())
	assert.True(t, ReasonLoadFailed.MayStartNext())
	assert.False(t, ReasonStopped.MayStartNext())
	assert.False(t, ReasonReplaced.MayStartNext())
	assert.False(t, ReasonCleanup.MayStartNext())
}

func TestOp(t *testing.T) {
	assert.Equal(t, "ready", Op([]byte(`{"op": "ready"}`)))
	assert.Equal(t, "unknown", Op([]byte(`nope`)))
}
