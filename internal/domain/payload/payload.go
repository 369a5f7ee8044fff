// Package payload provides the JSON codec helpers shared by the Lavalink value objects.
package payload

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// BuildError reports a payload that could not be turned into a value object.
type BuildError struct {
	Err    error
	Reason string
}

func (e *BuildError) Error() string {
	if e.Err == nil {
		return "build error: " + e.Reason
	}
	if e.Reason == "" {
		return "build error: " + e.Err.Error()
	}
	return "build error: " + e.Reason + ": " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return e.Err }

// NewBuildError wraps err as a build failure.
func NewBuildError(err error, reason string) *BuildError {
	return &BuildError{Err: err, Reason: reason}
}

var validate = validator.New()

// Decode unmarshals a JSON object into v and checks its required fields.
// Anything other than an object is rejected.
func Decode(data []byte, v any) error {
	if !IsObject(data) {
		return NewBuildError(nil, "payload is not a JSON object")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewBuildError(err, "invalid payload")
	}
	if err := Validate(v); err != nil {
		return err
	}
	return nil
}

// DecodeArray unmarshals a JSON array of objects into v.
func DecodeArray(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return NewBuildError(nil, "payload is not a JSON array")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return NewBuildError(err, "invalid payload")
	}
	return nil
}

// Validate runs struct validation and converts failures into a BuildError.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// not a struct, nothing to check
			return nil
		}
		return NewBuildError(err, "missing or invalid field")
	}
	return nil
}

// IsObject reports whether data holds a JSON object.
func IsObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 1 && trimmed[0] == '{' && json.Valid(trimmed)
}

// Millis is a timestamp carried on the wire as milliseconds since the epoch.
type Millis struct {
	time.Time
}

// FromMillis converts epoch milliseconds to a Millis.
func FromMillis(ms int64) Millis {
	return Millis{Time: time.UnixMilli(ms).UTC()}
}

// UnixMilli returns the wire representation.
func (m Millis) UnixMilli() int64 {
	if m.IsZero() {
		return 0
	}
	return m.Time.UnixMilli()
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.UnixMilli(), 10)), nil
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid millisecond timestamp %s", data)
	}
	*m = FromMillis(ms)
	return nil
}
