package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.DeliverySucceeded("order.created")
	m.DeliverySucceeded("order.created")
	m.DeliveryFailed("order.created")
	m.DeliveryRetried("invoice.paid")
	m.DeadLettered("order.created")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.delivered.WithLabelValues("order.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failed.WithLabelValues("order.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retried.WithLabelValues("invoice.paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deadLetters.WithLabelValues("order.created")))
}
