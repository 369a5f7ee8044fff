package event

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/domain/track"
)

var (
	ErrUnknownOp    = errors.New("unknown op")
	ErrUnknownEvent = errors.New("unknown event type")
)

type frame struct {
	Op   string `json:"op" validate:"required"`
	Type string `json:"type"`
}

type readyFrame struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId" validate:"required"`
}

type playerUpdateFrame struct {
	GuildID snowflake.ID `json:"guildId" validate:"required"`
	State   remote.State `json:"state"`
}

type trackFrame struct {
	GuildID snowflake.ID `json:"guildId" validate:"required"`
	Track   track.Track  `json:"track"`
}

type trackEndFrame struct {
	trackFrame
	Reason TrackEndReason `json:"reason" validate:"required,oneof=finished loadFailed stopped replaced cleanup"`
}

type trackExceptionFrame struct {
	trackFrame
	Exception remote.TrackException `json:"exception"`
}

type trackStuckFrame struct {
	trackFrame
	ThresholdMs int64 `json:"thresholdMs"`
}

type closedFrame struct {
	GuildID  snowflake.ID `json:"guildId" validate:"required"`
	Code     int          `json:"code"`
	Reason   string       `json:"reason"`
	ByRemote bool         `json:"byRemote"`
}

// Decode turns a websocket text frame into its protocol event. The session
// name is attached to the event.
func Decode(session string, data []byte) (Event, error) {
	var f frame
	if err := payload.Decode(data, &f); err != nil {
		return nil, err
	}

	switch f.Op {
	case "ready":
		var r readyFrame
		if err := payload.Decode(data, &r); err != nil {
			return nil, err
		}
		return Ready{Session: session, Resumed: r.Resumed, SessionID: r.SessionID}, nil

	case "playerUpdate":
		var p playerUpdateFrame
		if err := payload.Decode(data, &p); err != nil {
			return nil, err
		}
		return PlayerUpdate{Session: session, GuildID: p.GuildID, State: p.State}, nil

	case "stats":
		stats, err := remote.DecodeStatistics(data)
		if err != nil {
			return nil, err
		}
		return Stats{Session: session, Statistics: stats}, nil

	case "event":
		return decodeTrackEvent(session, f.Type, data)

	default:
		return nil, payload.NewBuildError(errors.Wrapf(ErrUnknownOp, "op %q", f.Op), "unsupported frame")
	}
}

func decodeTrackEvent(session, typ string, data []byte) (Event, error) {
	switch typ {
	case "TrackStartEvent":
		var f trackFrame
		if err := payload.Decode(data, &f); err != nil {
			return nil, err
		}
		return TrackStart{Session: session, GuildID: f.GuildID, Track: f.Track}, nil

	case "TrackEndEvent":
		var f trackEndFrame
		if err := payload.Decode(data, &f); err != nil {
			return nil, err
		}
		return TrackEnd{Session: session, GuildID: f.GuildID, Track: f.Track, Reason: f.Reason}, nil

	case "TrackExceptionEvent":
		var f trackExceptionFrame
		if err := payload.Decode(data, &f); err != nil {
			return nil, err
		}
		return TrackException{Session: session, GuildID: f.GuildID, Track: f.Track, Exception: f.Exception}, nil

	case "TrackStuckEvent":
		var f trackStuckFrame
		if err := payload.Decode(data, &f); err != nil {
			return nil, err
		}
		return TrackStuck{Session: session, GuildID: f.GuildID, Track: f.Track, ThresholdMs: f.ThresholdMs}, nil

	case "WebSocketClosedEvent":
		var f closedFrame
		if err := payload.Decode(data, &f); err != nil {
			return nil, err
		}
		return WebSocketClosed{Session: session, GuildID: f.GuildID, Code: f.Code, Reason: f.Reason, ByRemote: f.ByRemote}, nil

	default:
		return nil, payload.NewBuildError(errors.Wrapf(ErrUnknownEvent, "type %q", typ), "unsupported event")
	}
}

// Op returns the op discriminator of a frame without decoding the rest, for metrics.
func Op(data []byte) string {
	var f struct {
		Op string `json:"op"`
	}
	if json.Unmarshal(data, &f) != nil || f.Op == "" {
		return "unknown"
	}
	return f.Op
}
