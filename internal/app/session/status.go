package session

// Status is the connection status of a session.
type Status int

const (
	StatusNotConnected Status = iota // Not connected, or out of attempts
	StatusConnected                  // Websocket is open
	StatusFailure                    // Websocket failed after connecting
)

var allStatuses = []string{
	StatusNotConnected.String(),
	StatusConnected.String(),
	StatusFailure.String(),
}

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNotConnected:
		return "not_connected"
	case StatusConnected:
		return "connected"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}
