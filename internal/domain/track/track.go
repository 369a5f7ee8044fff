// Package track provides the Track and Playlist value objects served by a Lavalink node.
package track

import (
	"encoding/json"
	"maps"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/lavabox/internal/domain/payload"
)

// RequestorKey is the userData key that carries the requestor on the wire.
const RequestorKey = "ongaku_requestor"

// Info is the structured metadata of a track.
type Info struct {
	Identifier string  `json:"identifier" validate:"required"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"` // milliseconds
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"` // milliseconds
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	ISRC       *string `json:"isrc"`
	SourceName string  `json:"sourceName"`
}

// Duration returns the track length.
func (i Info) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// Track is a playable track. Encoded is opaque and only meaningful to the node.
type Track struct {
	Encoded    string
	Info       Info
	PluginInfo map[string]any
	UserData   map[string]any
	Requestor  snowflake.ID // zero when nobody requested it
}

type wireTrack struct {
	Encoded    string         `json:"encoded" validate:"required"`
	Info       Info           `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo"`
	UserData   map[string]any `json:"userData"`
}

// Decode builds a Track from a raw payload.
func Decode(data []byte) (Track, error) {
	var t Track
	if err := t.UnmarshalJSON(data); err != nil {
		return Track{}, err
	}
	return t, nil
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var w wireTrack
	if err := payload.Decode(data, &w); err != nil {
		return err
	}

	requestor, userData, err := splitRequestor(w.UserData)
	if err != nil {
		return payload.NewBuildError(err, "invalid requestor")
	}

	*t = Track{
		Encoded:    w.Encoded,
		Info:       w.Info,
		PluginInfo: w.PluginInfo,
		UserData:   userData,
		Requestor:  requestor,
	}
	return nil
}

func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTrack{
		Encoded:    t.Encoded,
		Info:       t.Info,
		PluginInfo: orEmpty(t.PluginInfo),
		UserData:   t.WireUserData(),
	})
}

// WireUserData returns the user data as sent to the node, requestor included.
func (t Track) WireUserData() map[string]any {
	out := make(map[string]any, len(t.UserData)+1)
	maps.Copy(out, t.UserData)
	if t.Requestor != 0 {
		out[RequestorKey] = t.Requestor.String()
	}
	return out
}

// WithRequestor returns a copy of the track tagged with the requestor.
func (t Track) WithRequestor(id snowflake.ID) Track {
	t.Requestor = id
	return t
}

// Equal reports whether both tracks carry the same data.
func (t Track) Equal(other Track) bool {
	return t.Encoded == other.Encoded &&
		t.Requestor == other.Requestor &&
		reflect.DeepEqual(t.Info, other.Info) &&
		equalMaps(t.PluginInfo, other.PluginInfo) &&
		equalMaps(t.UserData, other.UserData)
}

// DecodeUserData decodes the custom user data into out.
func (t Track) DecodeUserData(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create user data decoder")
	}
	if err := decoder.Decode(t.UserData); err != nil {
		return errors.Wrap(err, "failed to decode user data")
	}
	return nil
}

func splitRequestor(userData map[string]any) (snowflake.ID, map[string]any, error) {
	if userData == nil {
		return 0, map[string]any{}, nil
	}
	raw, ok := userData[RequestorKey]
	if !ok {
		return 0, userData, nil
	}

	rest := maps.Clone(userData)
	delete(rest, RequestorKey)

	switch v := raw.(type) {
	case nil:
		return 0, rest, nil
	case string:
		id, err := snowflake.Parse(v)
		if err != nil {
			return 0, nil, err
		}
		return id, rest, nil
	case float64:
		// JSON numbers lose precision above 2^53, which real snowflakes exceed.
		return 0, nil, errors.Newf("requestor %v must be a string", v)
	default:
		return 0, nil, errors.Newf("unexpected requestor type %T", raw)
	}
}

func equalMaps(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
