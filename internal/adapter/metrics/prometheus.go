package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements ports.MetricsSink using prometheus counters, all
// labeled by event name.
type Prometheus struct {
	delivered   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	retried     *prometheus.CounterVec
	deadLetters *prometheus.CounterVec
}

// NewPrometheus creates the delivery counters and registers them with the
// given registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Successful webhook deliveries.",
		}, []string{"event"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_delivery_failures_total",
			Help: "Failed webhook delivery attempts.",
		}, []string{"event"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_delivery_retries_total",
			Help: "Deliveries that succeeded after at least one retry.",
		}, []string{"event"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_dead_letters_total",
			Help: "Jobs dead-lettered by a tripped endpoint circuit.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.delivered, m.failed, m.retried, m.deadLetters)
	return m
}

func (m *Prometheus) DeliverySucceeded(event string) { m.delivered.WithLabelValues(event).Inc() }
func (m *Prometheus) DeliveryFailed(event string)    { m.failed.WithLabelValues(event).Inc() }
func (m *Prometheus) DeliveryRetried(event string)   { m.retried.WithLabelValues(event).Inc() }
func (m *Prometheus) DeadLettered(event string)      { m.deadLetters.WithLabelValues(event).Inc() }
