// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors updated by the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	events         *prometheus.CounterVec
	attacks        prometheus.Counter
	unknownProto   prometheus.Counter
	sinkErrors     *prometheus.CounterVec
	publishLatency prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nids_events_total",
			Help: "Events classified, by ingestion origin.",
		}, []string{"origin"}),
		attacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nids_attacks_total",
			Help: "Events classified as Attack.",
		}),
		unknownProto: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nids_unknown_protocol_total",
			Help: "Events whose protocol label was not seen during training.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nids_sink_errors_total",
			Help: "Failed writes to optional alert sinks.",
		}, []string{"sink"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nids_publish_latency_seconds",
			Help:    "Time spent publishing one classified event.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	reg.MustRegister(m.events, m.attacks, m.unknownProto, m.sinkErrors, m.publishLatency)
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvent(origin string, attack bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(origin).Inc()
	if attack {
		m.attacks.Inc()
	}
}

func (m *Metrics) IncUnknownProtocol() {
	if m == nil {
		return
	}
	m.unknownProto.Inc()
}

func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) ObservePublish(seconds float64) {
	if m == nil {
		return
	}
	m.publishLatency.Observe(seconds)
}
