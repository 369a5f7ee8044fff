package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Checked
	}{
		{
			name:  "watch link",
			query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want:  Checked{Value: "dQw4w9WgXcQ", Type: TypeTrack},
		},
		{
			name:  "watch link with extra parameters",
			query: "https://youtube.com/watch?t=42&v=dQw4w9WgXcQ&list=PL1",
			want:  Checked{Value: "dQw4w9WgXcQ", Type: TypeTrack},
		},
		{
			name:  "music link",
			query: "https://music.youtube.com/watch?v=abc",
			want:  Checked{Value: "abc", Type: TypeTrack},
		},
		{
			name:  "playlist link",
			query: "https://www.youtube.com/playlist?list=PLx0sYbCqOb8TBPRdmBHs5Iftvv9TPboYG",
			want:  Checked{Value: "PLx0sYbCqOb8TBPRdmBHs5Iftvv9TPboYG", Type: TypePlaylist},
		},
		{
			name:  "short link",
			query: "https://youtu.be/dQw4w9WgXcQ",
			want:  Checked{Value: "dQw4w9WgXcQ", Type: TypeTrack},
		},
		{
			name:  "watch link without id",
			query: "https://www.youtube.com/watch",
			want:  Checked{Value: "https://www.youtube.com/watch", Type: TypeQuery},
		},
		{
			name:  "other host",
			query: "https://soundcloud.com/watch?v=abc",
			want:  Checked{Value: "https://soundcloud.com/watch?v=abc", Type: TypeQuery},
		},
		{
			name:  "plain query",
			query: "never gonna give you up",
			want:  Checked{Value: "never gonna give you up", Type: TypeQuery},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.query))
		})
	}
}

func TestChecked_Identifier(t *testing.T) {
	assert.Equal(t, "ytsearch:lofi", Check("lofi").Identifier())
	assert.Equal(t, "abc", Check("https://youtu.be/abc").Identifier())
	assert.Equal(t, "playlist", TypePlaylist.String())
	assert.Equal(t, "query", TypeQuery.String())
}
