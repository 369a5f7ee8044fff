package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count"`
}

func TestDecode(t *testing.T) {
	var s sample
	require.NoError(t, Decode([]byte(` {"name": "a", "count": 2} `), &s))
	assert.Equal(t, sample{Name: "a", Count: 2}, s)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{name: "array", data: `[{"name": "a"}]`, reason: "not a JSON object"},
		{name: "string", data: `"name"`, reason: "not a JSON object"},
		{name: "truncated", data: `{"name": "a"`, reason: "not a JSON object"},
		{name: "wrong type", data: `{"name": 1}`, reason: "invalid payload"},
		{name: "missing field", data: `{"count": 1}`, reason: "missing or invalid field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sample
			err := Decode([]byte(tt.data), &s)
			var be *BuildError
			require.ErrorAs(t, err, &be)
			assert.Contains(t, be.Error(), tt.reason)
		})
	}
}

func TestDecodeArray(t *testing.T) {
	var out []sample
	require.NoError(t, DecodeArray([]byte(`[{"name": "a"}, {"name": "b"}]`), &out))
	assert.Len(t, out, 2)

	var be *BuildError
	assert.ErrorAs(t, DecodeArray([]byte(`{"name": "a"}`), &out), &be)
	assert.ErrorAs(t, DecodeArray([]byte(`[{"name": 1}]`), &out), &be)
}

func TestMillis(t *testing.T) {
	var m Millis
	require.NoError(t, json.Unmarshal([]byte(`1500467109000`), &m))
	assert.Equal(t, time.Date(2017, 7, 19, 12, 25, 9, 0, time.UTC), m.Time)
	assert.Equal(t, int64(1500467109000), m.UnixMilli())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "1500467109000", string(data))

	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.True(t, m.IsZero())
	data, err = json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &m))
}

func TestBuildError_Unwrap(t *testing.T) {
	inner := json.Unmarshal([]byte(`{`), &struct{}{})
	err := NewBuildError(inner, "invalid payload")
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "build error: no reason", (&BuildError{Reason: "no reason"}).Error())
}
