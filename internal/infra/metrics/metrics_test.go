package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetSessionStatus(t *testing.T) {
	all := []string{"not_connected", "connected", "failure"}

	SetSessionStatus("metrics-test", "connected", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("metrics-test", "connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("metrics-test", "failure")))

	SetSessionStatus("metrics-test", "failure", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("metrics-test", "connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("metrics-test", "failure")))
}

func TestCounters(t *testing.T) {
	IncRestRequest("metrics-test", "GET", 200)
	IncRestRequest("metrics-test", "GET", 0)
	IncFrame("metrics-test", "")
	IncHandshake("metrics-test", false)
	IncTransfer("metrics-test", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(RestRequestsTotal.WithLabelValues("metrics-test", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RestRequestsTotal.WithLabelValues("metrics-test", "GET", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(FramesReceivedTotal.WithLabelValues("metrics-test", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(HandshakeAttemptsTotal.WithLabelValues("metrics-test", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(TransfersTotal.WithLabelValues("metrics-test", "success")))
}
