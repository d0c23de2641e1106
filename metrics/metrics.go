// Package metrics exposes store activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "bytestore"

// Metrics groups the store's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	instructions *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	charged      prometheus.Counter
	refunded     prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "instructions_total",
			Help:      "Instructions committed, by operation.",
		}, []string{"op"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rejections_total",
			Help:      "Instructions rejected, by operation and reason.",
		}, []string{"op", "reason"}),
		charged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deposit_charged_total",
			Help:      "Capacity deposit charged to owners.",
		}),
		refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deposit_refunded_total",
			Help:      "Capacity deposit refunded to owners.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.instructions, m.rejections, m.charged, m.refunded} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Committed records a committed instruction and the deposits it moved.
func (m *Metrics) Committed(op string, charged, refunded uint64) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(op).Inc()
	if charged > 0 {
		m.charged.Add(float64(charged))
	}
	if refunded > 0 {
		m.refunded.Add(float64(refunded))
	}
}

// Rejected records a rejected instruction.
func (m *Metrics) Rejected(op, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, reason).Inc()
}

// Handler serves the collectors registered on g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
