package remote

import (
	"github.com/osa030/lavabox/internal/domain/payload"
)

// Memory is the node's memory usage in bytes.
type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPU is the node's processor usage.
type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// FrameStatistics counts audio frames over the last minute. Only sent over
// the websocket.
type FrameStatistics struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

// Statistics is a snapshot of node load.
type Statistics struct {
	Players        int              `json:"players"`
	PlayingPlayers int              `json:"playingPlayers"`
	Uptime         int64            `json:"uptime"` // milliseconds
	Memory         Memory           `json:"memory"`
	CPU            CPU              `json:"cpu"`
	FrameStats     *FrameStatistics `json:"frameStats"`
}

// DecodeStatistics builds Statistics from a raw payload.
func DecodeStatistics(data []byte) (Statistics, error) {
	var s Statistics
	if err := payload.Decode(data, &s); err != nil {
		return Statistics{}, err
	}
	return s, nil
}

// Version is the semantic version of the node.
type Version struct {
	Semver     string  `json:"semver" validate:"required"`
	Major      int     `json:"major"`
	Minor      int     `json:"minor"`
	Patch      int     `json:"patch"`
	PreRelease *string `json:"preRelease"`
	Build      *string `json:"build"`
}

// Git is the revision the node was built from.
type Git struct {
	Branch     string         `json:"branch"`
	Commit     string         `json:"commit"`
	CommitTime payload.Millis `json:"commitTime"`
}

// Plugin is a plugin loaded by the node.
type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Info describes the node build and its capabilities.
type Info struct {
	Version        Version        `json:"version"`
	BuildTime      payload.Millis `json:"buildTime"`
	Git            Git            `json:"git"`
	JVM            string         `json:"jvm"`
	Lavaplayer     string         `json:"lavaplayer"`
	SourceManagers []string       `json:"sourceManagers"`
	Filters        []string       `json:"filters"`
	Plugins        []Plugin       `json:"plugins"`
}

// DecodeInfo builds Info from a raw payload.
func DecodeInfo(data []byte) (Info, error) {
	var i Info
	if err := payload.Decode(data, &i); err != nil {
		return Info{}, err
	}
	return i, nil
}

// SessionInfo is the resume configuration of a websocket session.
type SessionInfo struct {
	Resuming bool `json:"resuming"`
	Timeout  int  `json:"timeout"` // seconds
}

// Severity classifies a track exception.
type Severity string

const (
	SeverityCommon     Severity = "common"
	SeveritySuspicious Severity = "suspicious"
	SeverityFault      Severity = "fault"
)

// TrackException is an error raised by the node while loading or playing a track.
type TrackException struct {
	Message  *string  `json:"message"`
	Severity Severity `json:"severity" validate:"required,oneof=common suspicious fault"`
	Cause    string   `json:"cause"`
}
