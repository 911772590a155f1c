// Package metrics exposes Prometheus collectors for SMS dispatch and the
// verification lifecycle. All methods are safe on a nil receiver so callers
// can run without metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the collectors registered by the service.
type Metrics struct {
	dispatchTotal   *prometheus.CounterVec
	fallbackTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	verifyTotal     *prometheus.CounterVec
	sweptTotal      prometheus.Counter
}

// New registers the collectors on reg, or on the default registerer when reg
// is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phoneverify",
			Subsystem: "sms",
			Name:      "dispatch_total",
			Help:      "SMS send attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phoneverify",
			Subsystem: "sms",
			Name:      "fallback_total",
			Help:      "Dispatches that fell back to the test channel, by failed provider",
		}, []string{"provider"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "phoneverify",
			Subsystem: "sms",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of provider Send calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phoneverify",
			Subsystem: "verification",
			Name:      "events_total",
			Help:      "Verification lifecycle events",
		}, []string{"event"}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phoneverify",
			Subsystem: "verification",
			Name:      "swept_total",
			Help:      "Expired entries removed by sweeps",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchTotal, m.fallbackTotal, m.dispatchLatency, m.verifyTotal, m.sweptTotal)
	return m
}

func (m *Metrics) ObserveDispatch(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(provider, outcome).Inc()
	m.dispatchLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) ObserveFallback(provider string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(provider).Inc()
}

// ObserveVerification counts an event such as "requested", "verified",
// "mismatch", "expired" or "attempts_exceeded".
func (m *Metrics) ObserveVerification(event string) {
	if m == nil {
		return
	}
	m.verifyTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}
