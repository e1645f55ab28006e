package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FrameSent()
	m.FrameSent()
	m.FrameReceived()
	m.FrameDropped(ReasonUndecodable)
	m.FrameThrottled()
	m.MoveApplied(OriginRemote)
	m.MoveRejected(OriginRemote, ReasonIllegal)
	m.SetQueueDepth("outbound", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(ReasonUndecodable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesThrottle))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movesApplied.WithLabelValues(OriginRemote)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movesRejected.WithLabelValues(OriginRemote, ReasonIllegal)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("outbound")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameSent()
		m.FrameReceived()
		m.FrameDropped(ReasonUndecodable)
		m.FrameThrottled()
		m.MoveApplied(OriginLocal)
		m.MoveRejected(OriginLocal, ReasonNotYourTurn)
		m.SetQueueDepth("inbound", 1)
	})
}
