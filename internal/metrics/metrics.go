package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one peer process.
// All methods are safe to call on a nil *Metrics, so components can run without metrics.
type Metrics struct {
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	framesThrottle prometheus.Counter
	movesApplied   *prometheus.CounterVec
	movesRejected  *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
}

// drop and rejection reasons used as label values
const (
	ReasonUndecodable = "undecodable"
	ReasonMalformed   = "malformed"
	ReasonIllegal     = "illegal"
	ReasonNotYourTurn = "not_your_turn"
	ReasonEnded       = "session_ended"

	OriginLocal  = "local"
	OriginRemote = "remote"
)

// constructor for Metrics, registering every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace = "chesspeer"

	return &Metrics{
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to the peer",
		}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames read from the peer and decoded",
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of inbound frames discarded",
		}, []string{"reason"}),
		framesThrottle: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_throttled_total",
			Help:      "Total number of inbound frames held back by the rate limiter",
		}),
		movesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_applied_total",
			Help:      "Total number of moves applied to the shared game state",
		}, []string{"origin"}),
		movesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_rejected_total",
			Help:      "Total number of moves rejected before reaching the game state",
		}, []string{"origin", "reason"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of messages waiting in a bridge queue",
		}, []string{"queue"}),
	}
}

func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// FrameThrottled counts a frame that had to wait for the inbound limiter
func (m *Metrics) FrameThrottled() {
	if m == nil {
		return
	}
	m.framesThrottle.Inc()
}

func (m *Metrics) MoveApplied(origin string) {
	if m == nil {
		return
	}
	m.movesApplied.WithLabelValues(origin).Inc()
}

func (m *Metrics) MoveRejected(origin, reason string) {
	if m == nil {
		return
	}
	m.movesRejected.WithLabelValues(origin, reason).Inc()
}

func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
