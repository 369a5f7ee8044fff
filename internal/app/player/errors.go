package player

import (
	"github.com/cockroachdb/errors"
)

// QueueError is returned when an operation needs queue contents that are not there.
type QueueError struct {
	Reason string
}

func (e *QueueError) Error() string {
	return "queue error: " + e.Reason
}

var (
	// ErrQueueEmpty is returned when the queue has no tracks.
	ErrQueueEmpty = &QueueError{Reason: "queue is empty"}
	// ErrInvalidValue is returned when an argument is out of range.
	ErrInvalidValue = errors.New("invalid value")
	// ErrConnect is returned when the player cannot join or is not in a voice channel.
	ErrConnect = errors.New("player connect failed")
)
