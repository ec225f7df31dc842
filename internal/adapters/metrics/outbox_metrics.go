package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetricsCollector handles outbox dispatcher metrics
type OutboxMetricsCollector struct {
	pending         prometheus.Gauge
	dispatchedTotal *prometheus.CounterVec
	dispatchLag     prometheus.Histogram
	deadTotal       prometheus.Counter
}

// NewOutboxMetricsCollector creates a new outbox metrics collector
func NewOutboxMetricsCollector() *OutboxMetricsCollector {
	return &OutboxMetricsCollector{
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outbox_pending",
				Help:      "Undispatched live outbox records",
			},
		),
		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outbox_dispatched_total",
				Help:      "Outbox dispatch attempts by outcome",
			},
			[]string{"event_type", "outcome"},
		),
		dispatchLag: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outbox_dispatch_lag_seconds",
				Help:      "Time from record creation to successful dispatch",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900},
			},
		),
		deadTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outbox_dead_total",
				Help:      "Outbox records dead-lettered after retry exhaustion",
			},
		),
	}
}

// Register registers all outbox metrics with the Prometheus registry
func (c *OutboxMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	metrics := []prometheus.Collector{
		c.pending,
		c.dispatchedTotal,
		c.dispatchLag,
		c.deadTotal,
	}
	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// SetPending records the pending record count
func (c *OutboxMetricsCollector) SetPending(count int64) {
	c.pending.Set(float64(count))
}

// RecordDispatch counts one dispatch attempt
func (c *OutboxMetricsCollector) RecordDispatch(eventType string, success bool, lagSeconds float64) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.dispatchedTotal.WithLabelValues(eventType, outcome).Inc()
	if success {
		c.dispatchLag.Observe(lagSeconds)
	}
}

// RecordDead counts one dead-lettered record
func (c *OutboxMetricsCollector) RecordDead() {
	c.deadTotal.Inc()
}
