package zenoh

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is an interface for tracking session statistics. Session calls
// Increment-style hooks as it encodes, decodes, seals frames and moves
// through the handshake and liveness sub-states; a collector reads via the
// Get* accessors a concrete implementation exposes.
type Metrics interface {
	BatchEncoded(n int)
	BatchDecoded(n int)
	FrameSealed()
	HandshakeTransition(from, to EstablishState)
	LivenessChanged(to Liveness)
}

// DefaultMetrics implements Metrics with atomic counters, mirroring the
// teacher's in-process counter style.
type DefaultMetrics struct {
	batchesEncoded     int64
	batchesDecoded     int64
	framesSealed       int64
	handshakeSteps     int64
	livenessTransitions int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) BatchEncoded(n int) { atomic.AddInt64(&m.batchesEncoded, int64(n)) }
func (m *DefaultMetrics) BatchDecoded(n int) { atomic.AddInt64(&m.batchesDecoded, int64(n)) }
func (m *DefaultMetrics) FrameSealed()       { atomic.AddInt64(&m.framesSealed, 1) }
func (m *DefaultMetrics) HandshakeTransition(from, to EstablishState) {
	atomic.AddInt64(&m.handshakeSteps, 1)
}
func (m *DefaultMetrics) LivenessChanged(to Liveness) {
	atomic.AddInt64(&m.livenessTransitions, 1)
}

func (m *DefaultMetrics) GetBatchesEncoded() int64 { return atomic.LoadInt64(&m.batchesEncoded) }
func (m *DefaultMetrics) GetBatchesDecoded() int64 { return atomic.LoadInt64(&m.batchesDecoded) }
func (m *DefaultMetrics) GetFramesSealed() int64   { return atomic.LoadInt64(&m.framesSealed) }
func (m *DefaultMetrics) GetHandshakeSteps() int64 { return atomic.LoadInt64(&m.handshakeSteps) }
func (m *DefaultMetrics) GetLivenessTransitions() int64 {
	return atomic.LoadInt64(&m.livenessTransitions)
}

// PrometheusMetrics implements Metrics with promauto-registered
// collectors, for deployments that already scrape a Prometheus endpoint
// for the rest of the host process.
type PrometheusMetrics struct {
	batchesEncoded prometheus.Counter
	batchesDecoded prometheus.Counter
	framesSealed   prometheus.Counter
	handshakeSteps *prometheus.CounterVec
	livenessChanges *prometheus.CounterVec
}

// NewPrometheusMetrics registers and returns a PrometheusMetrics bound to
// reg (pass prometheus.DefaultRegisterer for the global registry).
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		batchesEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "zenoh_batches_encoded_total",
			Help: "Network messages handed to the transport writer for encoding.",
		}),
		batchesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "zenoh_batches_decoded_total",
			Help: "Messages returned to the caller by the transport reader.",
		}),
		framesSealed: factory.NewCounter(prometheus.CounterOpts{
			Name: "zenoh_frames_sealed_total",
			Help: "Batches sealed by the batch writer.",
		}),
		handshakeSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zenoh_handshake_transitions_total",
			Help: "Establishment state machine transitions, labeled by destination state.",
		}, []string{"to"}),
		livenessChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zenoh_liveness_transitions_total",
			Help: "Session liveness sub-state transitions, labeled by destination state.",
		}, []string{"to"}),
	}
}

func (m *PrometheusMetrics) BatchEncoded(n int) { m.batchesEncoded.Add(float64(n)) }
func (m *PrometheusMetrics) BatchDecoded(n int) { m.batchesDecoded.Add(float64(n)) }
func (m *PrometheusMetrics) FrameSealed()       { m.framesSealed.Inc() }

func (m *PrometheusMetrics) HandshakeTransition(from, to EstablishState) {
	m.handshakeSteps.WithLabelValues(establishStateName(to)).Inc()
}

func (m *PrometheusMetrics) LivenessChanged(to Liveness) {
	m.livenessChanges.WithLabelValues(livenessName(to)).Inc()
}

func establishStateName(s EstablishState) string {
	switch s {
	case StateWaitingInitSyn:
		return "waiting_init_syn"
	case StateWaitingInitAck:
		return "waiting_init_ack"
	case StateWaitingOpenSyn:
		return "waiting_open_syn"
	case StateWaitingOpenAck:
		return "waiting_open_ack"
	case StateOpened:
		return "opened"
	default:
		return "unknown"
	}
}

func livenessName(l Liveness) string {
	switch l {
	case LivenessOpened:
		return "opened"
	case LivenessUsed:
		return "used"
	case LivenessSynchronized:
		return "synchronized"
	case LivenessClosed:
		return "closed"
	default:
		return "unknown"
	}
}
