package track

import (
	"encoding/json"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lavabox/internal/domain/payload"
)

const trackPayload = `{
	"encoded": "QAAAjQIAJVJpY2sgQXN0bGV5",
	"info": {
		"identifier": "dQw4w9WgXcQ",
		"isSeekable": true,
		"author": "RickAstleyVEVO",
		"length": 212000,
		"isStream": false,
		"position": 0,
		"title": "Rick Astley - Never Gonna Give You Up",
		"uri": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"artworkUrl": null,
		"isrc": null,
		"sourceName": "youtube"
	},
	"pluginInfo": {},
	"userData": {"ongaku_requestor": "1234567890", "note": "hello"}
}`

func TestDecode(t *testing.T) {
	tr, err := Decode([]byte(trackPayload))
	require.NoError(t, err)

	uri := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	want := Track{
		Encoded: "QAAAjQIAJVJpY2sgQXN0bGV5",
		Info: Info{
			Identifier: "dQw4w9WgXcQ",
			IsSeekable: true,
			Author:     "RickAstleyVEVO",
			Length:     212000,
			Title:      "Rick Astley - Never Gonna Give You Up",
			URI:        &uri,
			SourceName: "youtube",
		},
		PluginInfo: map[string]any{},
		UserData:   map[string]any{"note": "hello"},
		Requestor:  snowflake.ID(1234567890),
	}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(212), int64(tr.Info.Duration().Seconds()))
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "array", data: `[]`},
		{name: "malformed", data: `{"encoded":`},
		{name: "missing encoded", data: `{"info": {"identifier": "abc"}}`},
		{name: "missing identifier", data: `{"encoded": "abc", "info": {}}`},
		{name: "bad requestor", data: `{"encoded": "abc", "info": {"identifier": "abc"}, "userData": {"ongaku_requestor": "nope"}}`},
		{name: "numeric requestor", data: `{"encoded": "abc", "info": {"identifier": "abc"}, "userData": {"ongaku_requestor": 1234567890123456789}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			var buildErr *payload.BuildError
			assert.ErrorAs(t, err, &buildErr)
		})
	}
}

func TestTrack_RequestorRoundTrip(t *testing.T) {
	tr, err := Decode([]byte(trackPayload))
	require.NoError(t, err)
	assert.NotContains(t, tr.UserData, RequestorKey)

	data, err := json.Marshal(tr.WithRequestor(snowflake.ID(987654321)))
	require.NoError(t, err)

	var raw struct {
		UserData map[string]any `json:"userData"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "987654321", raw.UserData[RequestorKey])
	assert.Equal(t, "hello", raw.UserData["note"])

	again, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(987654321), again.Requestor)
	assert.True(t, again.Equal(tr.WithRequestor(snowflake.ID(987654321))))
}

func TestTrack_WireUserDataWithoutRequestor(t *testing.T) {
	tr := Track{Encoded: "abc", UserData: map[string]any{"a": 1}}
	assert.Equal(t, map[string]any{"a": 1}, tr.WireUserData())
	assert.NotContains(t, tr.UserData, RequestorKey)
}

func TestTrack_Equal(t *testing.T) {
	a := Track{Encoded: "abc", Info: Info{Identifier: "1"}}
	b := Track{Encoded: "abc", Info: Info{Identifier: "1"}, UserData: map[string]any{}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.WithRequestor(snowflake.ID(1))))
	assert.False(t, a.Equal(Track{Encoded: "abd", Info: Info{Identifier: "1"}}))
}

func TestTrack_DecodeUserData(t *testing.T) {
	tr := Track{UserData: map[string]any{"queue_position": "3", "source": "radio"}}

	var out struct {
		QueuePosition int    `json:"queue_position"`
		Source        string `json:"source"`
	}
	require.NoError(t, tr.DecodeUserData(&out))
	assert.Equal(t, 3, out.QueuePosition)
	assert.Equal(t, "radio", out.Source)
}

func TestPlaylist(t *testing.T) {
	data := `{
		"info": {"name": "Mix", "selectedTrack": 1},
		"pluginInfo": {},
		"tracks": [
			{"encoded": "a", "info": {"identifier": "a", "length": 1000}},
			{"encoded": "b", "info": {"identifier": "b", "length": 2500}}
		]
	}`

	p, err := DecodePlaylist([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "Mix", p.Info.Name)
	assert.Len(t, p.Tracks, 2)
	assert.Equal(t, int64(3500), p.TotalLength())

	selected, ok := p.Selected()
	assert.True(t, ok)
	assert.Equal(t, "b", selected.Encoded)

	p.Info.SelectedTrack = -1
	_, ok = p.Selected()
	assert.False(t, ok)
}

func TestLoadResult_All(t *testing.T) {
	one := Track{Encoded: "a"}
	assert.Equal(t, []Track{one}, LoadResult{Type: LoadTypeTrack, Track: &one}.All())
	assert.Equal(t, []Track{one}, LoadResult{Type: LoadTypePlaylist, Playlist: &Playlist{Tracks: []Track{one}}}.All())
	assert.True(t, LoadResult{Type: LoadTypeEmpty}.Empty())
}
