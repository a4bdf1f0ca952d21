// Package metrics exposes the §7 user-visible counters and the C6
// congestion-control rate/RTT gauges as a Prometheus collector set.
//
// Unlike the teacher's promauto package-level vars, a Registry here is
// an explicitly constructed value (per §9's ban on core-engine
// singletons): a process hosting several participants can give each
// its own Registry, or share one across them via a common "participant"
// label, without fighting a global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hdds-io/hdds/internal/hddserr"
)

const (
	labelParticipant = "participant"
	labelTopic       = "topic"
	labelKind        = "kind"
)

// Registry owns one Prometheus registry and the named counter/gauge
// vectors the core reports through. Entities hand it their participant
// GUID prefix as a label value rather than reach for a global.
type Registry struct {
	reg *prometheus.Registry

	samplesLost       *prometheus.CounterVec
	samplesRejected   *prometheus.CounterVec
	deadlineMissed    *prometheus.CounterVec
	livelinessLost    *prometheus.CounterVec
	livelinessRegained *prometheus.CounterVec
	incompatibleQoS   *prometheus.CounterVec
	matched           *prometheus.GaugeVec
	errorsByKind      *prometheus.CounterVec

	sendRate  *prometheus.GaugeVec
	rtt       *prometheus.GaugeVec
	inFlight  *prometheus.GaugeVec
}

// New builds a Registry with every metric registered against a fresh
// prometheus.Registry (never prometheus.DefaultRegisterer), so tests and
// multiple participants in one process never collide on metric names.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.samplesLost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_samples_lost_total",
		Help: "Samples dropped from a reader's history cache before delivery.",
	}, []string{labelParticipant, labelTopic})

	r.samplesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_samples_rejected_total",
		Help: "Samples rejected on write (resource limits, serialization failure).",
	}, []string{labelParticipant, labelTopic})

	r.deadlineMissed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_deadline_missed_total",
		Help: "Deadline QoS misses reported by internal/qos.DeadlineMonitor.",
	}, []string{labelParticipant, labelTopic})

	r.livelinessLost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_liveliness_lost_total",
		Help: "Writer liveliness lease expirations.",
	}, []string{labelParticipant, labelTopic})

	r.livelinessRegained = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_liveliness_regained_total",
		Help: "Writer liveliness re-assertions after a loss.",
	}, []string{labelParticipant, labelTopic})

	r.incompatibleQoS = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_incompatible_qos_total",
		Help: "Reader/writer matches rejected by internal/qos.Compatible.",
	}, []string{labelParticipant, labelTopic})

	r.matched = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdds_matched_endpoints",
		Help: "Currently matched remote endpoints per local endpoint.",
	}, []string{labelParticipant, labelTopic, labelKind})

	r.errorsByKind = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_errors_total",
		Help: "Errors returned from the Core API, partitioned by hddserr.Kind.",
	}, []string{labelParticipant, labelKind})

	r.sendRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdds_congestion_send_rate_bytes_per_second",
		Help: "Current AIMD send rate of a writer's token bucket.",
	}, []string{labelParticipant, labelTopic})

	r.rtt = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdds_congestion_rtt_seconds",
		Help: "Smoothed heartbeat/ACKNACK round-trip estimate per matched reader.",
	}, []string{labelParticipant, labelTopic})

	r.inFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdds_congestion_in_flight_samples",
		Help: "Samples sent but not yet acknowledged, per writer.",
	}, []string{labelParticipant, labelTopic})

	r.reg.MustRegister(
		r.samplesLost, r.samplesRejected, r.deadlineMissed,
		r.livelinessLost, r.livelinessRegained, r.incompatibleQoS,
		r.matched, r.errorsByKind, r.sendRate, r.rtt, r.inFlight,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler
// (e.g. promhttp.HandlerFor(m.Gatherer(), ...)) without leaking the
// concrete prometheus.Registry type into callers that only need to read.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Registry) SampleLost(participant, topic string) {
	m.samplesLost.WithLabelValues(participant, topic).Inc()
}

func (m *Registry) SampleRejected(participant, topic string) {
	m.samplesRejected.WithLabelValues(participant, topic).Inc()
}

func (m *Registry) DeadlineMissed(participant, topic string) {
	m.deadlineMissed.WithLabelValues(participant, topic).Inc()
}

func (m *Registry) LivelinessLost(participant, topic string) {
	m.livelinessLost.WithLabelValues(participant, topic).Inc()
}

func (m *Registry) LivelinessRegained(participant, topic string) {
	m.livelinessRegained.WithLabelValues(participant, topic).Inc()
}

func (m *Registry) IncompatibleQoS(participant, topic string) {
	m.incompatibleQoS.WithLabelValues(participant, topic).Inc()
}

// SetMatched records the current matched-endpoint count for one local
// endpoint; kind is "publisher" or "subscriber".
func (m *Registry) SetMatched(participant, topic, kind string, count int) {
	m.matched.WithLabelValues(participant, topic, kind).Set(float64(count))
}

// ObserveError increments the errors-by-kind counter from any error
// returned through the hddserr taxonomy, defaulting unrecognized errors
// to hddserr.Fatal the same way hddserr.KindOf does.
func (m *Registry) ObserveError(participant string, err error) {
	m.errorsByKind.WithLabelValues(participant, hddserr.KindOf(err).String()).Inc()
}

func (m *Registry) SetSendRate(participant, topic string, bytesPerSecond float64) {
	m.sendRate.WithLabelValues(participant, topic).Set(bytesPerSecond)
}

func (m *Registry) SetRTT(participant, topic string, seconds float64) {
	m.rtt.WithLabelValues(participant, topic).Set(seconds)
}

func (m *Registry) SetInFlight(participant, topic string, count int) {
	m.inFlight.WithLabelValues(participant, topic).Set(float64(count))
}
