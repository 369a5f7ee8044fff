// Package metrics provides the Prometheus collectors of the Lavalink client.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lavabox_session_status",
		Help: "Current status of a node session (1 for the active status)",
	}, []string{"session", "status"})

	HandshakeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavabox_session_handshake_attempts_total",
		Help: "Total number of websocket handshake attempts by result",
	}, []string{"session", "result"})

	FramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavabox_session_frames_received_total",
		Help: "Total number of websocket frames received by op",
	}, []string{"session", "op"})

	RestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavabox_rest_requests_total",
		Help: "Total number of REST requests by method and status code",
	}, []string{"session", "method", "code"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavabox_player_transfers_total",
		Help: "Total number of players moved off a failed session by result",
	}, []string{"session", "result"})
)

// SetSessionStatus marks status as the active status of a session.
func SetSessionStatus(session, status string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == status {
			value = 1
		}
		SessionStatus.WithLabelValues(session, s).Set(value)
	}
}

// IncHandshake records a handshake attempt.
func IncHandshake(session string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	HandshakeAttemptsTotal.WithLabelValues(session, result).Inc()
}

// IncFrame records a received frame.
func IncFrame(session, op string) {
	if op == "" {
		op = "unknown"
	}
	FramesReceivedTotal.WithLabelValues(session, op).Inc()
}

// IncRestRequest records a REST request. A code of 0 means the request never got a response.
func IncRestRequest(session, method string, code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	RestRequestsTotal.WithLabelValues(session, method, label).Inc()
}

// IncTransfer records a player transfer.
func IncTransfer(session string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	TransfersTotal.WithLabelValues(session, result).Inc()
}
