package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector backed by Prometheus.
// Metrics are created and registered on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	endpoints       *prometheus.CounterVec
	active          *prometheus.GaugeVec
	payloads        *prometheus.CounterVec
	payloadBytes    *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	emptyFrames     *prometheus.CounterVec
	remoteShutdowns *prometheus.CounterVec
	teardowns       *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector. A nil reg uses
// prometheus.DefaultRegisterer; an empty namespace uses "gazebo".
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "gazebo"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Subsystem: "subscription",
		Name:      name,
		Help:      help,
	}, labels)
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.endpoints = p.counter("endpoints_created_total", "Subscription endpoints constructed.", "topic")
		p.active = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "subscription",
			Name:      "endpoints_active",
			Help:      "Endpoints currently holding a connection.",
		}, []string{"topic"})
		p.payloads = p.counter("payloads_delivered_total", "Payloads handed to a callback.", "topic")
		p.payloadBytes = p.counter("payload_bytes_total", "Bytes of payload handed to a callback.", "topic")
		p.dropped = p.counter("payloads_dropped_total", "Payloads discarded because no callback was installed.", "topic")
		p.emptyFrames = p.counter("empty_frames_total", "Zero-length frames received.", "topic")
		p.remoteShutdowns = p.counter("remote_shutdowns_total", "Connections shut down from below.", "topic")
		p.teardowns = p.counter("teardowns_total", "Connection releases by kind (fini, close).", "topic", "kind")

		p.reg.MustRegister(
			p.endpoints, p.active, p.payloads, p.payloadBytes,
			p.dropped, p.emptyFrames, p.remoteShutdowns, p.teardowns,
		)
	})
}

// EndpointCreated counts a constructed endpoint.
func (p *PrometheusCollector) EndpointCreated(topic string) {
	p.ensureRegistered()
	p.endpoints.WithLabelValues(topic).Inc()
}

// EndpointActivated raises the active gauge.
func (p *PrometheusCollector) EndpointActivated(topic string) {
	p.ensureRegistered()
	p.active.WithLabelValues(topic).Inc()
}

// PayloadDelivered counts a delivered payload and its size.
func (p *PrometheusCollector) PayloadDelivered(topic string, size int) {
	p.ensureRegistered()
	p.payloads.WithLabelValues(topic).Inc()
	p.payloadBytes.WithLabelValues(topic).Add(float64(size))
}

// PayloadDropped counts a discarded payload.
func (p *PrometheusCollector) PayloadDropped(topic string) {
	p.ensureRegistered()
	p.dropped.WithLabelValues(topic).Inc()
}

// EmptyFrame counts a zero-length frame.
func (p *PrometheusCollector) EmptyFrame(topic string) {
	p.ensureRegistered()
	p.emptyFrames.WithLabelValues(topic).Inc()
}

// RemoteShutdown counts a connection shut down from below.
func (p *PrometheusCollector) RemoteShutdown(topic string) {
	p.ensureRegistered()
	p.remoteShutdowns.WithLabelValues(topic).Inc()
}

// Teardown counts a release and lowers the active gauge.
func (p *PrometheusCollector) Teardown(topic, kind string) {
	p.ensureRegistered()
	p.teardowns.WithLabelValues(topic, kind).Inc()
	p.active.WithLabelValues(topic).Dec()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
// A nil g uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
