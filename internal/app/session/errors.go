package session

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/osa030/lavabox/internal/domain/payload"
)

var (
	// ErrSessionStart is returned when the bot identity needed to connect is unavailable.
	ErrSessionStart = errors.New("session could not start")
	// ErrSessionNotReady is returned when the node has not assigned a session ID yet.
	ErrSessionNotReady = errors.New("session is not ready")
	// ErrRestEmpty is returned when a response had no content but data was expected.
	ErrRestEmpty = errors.New("rest response was empty")
)

// RestStatusError is a failed response whose body could not be read as a node error.
type RestStatusError struct {
	Status int
	Reason string
}

func (e *RestStatusError) Error() string {
	return fmt.Sprintf("rest request failed: status=%d reason=%s", e.Status, e.Reason)
}

// RestRequestError is the structured error returned by the node.
type RestRequestError struct {
	Timestamp payload.Millis `json:"timestamp"`
	Status    int            `json:"status" validate:"required"`
	ErrorText string         `json:"error"`
	Message   string         `json:"message"`
	Path      string         `json:"path" validate:"required"`
	Trace     *string        `json:"trace"`
}

func (e *RestRequestError) Error() string {
	return fmt.Sprintf("rest request failed: status=%d error=%s message=%s path=%s", e.Status, e.ErrorText, e.Message, e.Path)
}

func restError(status int, body []byte) error {
	if len(body) > 0 {
		var re RestRequestError
		if err := payload.Decode(body, &re); err == nil {
			return &re
		}
	}
	return &RestStatusError{Status: status, Reason: http.StatusText(status)}
}
