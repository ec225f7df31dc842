package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetricsCollector handles matching engine metrics
type EngineMetricsCollector struct {
	queueDepth         prometheus.Gauge
	eventsTotal        *prometheus.CounterVec
	matchesTotal       *prometheus.CounterVec
	allocationConflict prometheus.Counter
	matchScore         prometheus.Histogram
	passDuration       *prometheus.HistogramVec
}

// NewEngineMetricsCollector creates a new engine metrics collector
func NewEngineMetricsCollector() *EngineMetricsCollector {
	return &EngineMetricsCollector{
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_depth",
				Help:      "Current matching event queue depth",
			},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_total",
				Help:      "Matching events consumed by priority and outcome",
			},
			[]string{"priority", "outcome"},
		),
		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matches_total",
				Help:      "Matches created by risk status",
			},
			[]string{"risk_status"},
		),
		allocationConflict: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "allocation_conflicts_total",
				Help:      "Version conflicts hit during allocation",
			},
		),
		matchScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "match_score",
				Help:      "Score distribution of created matches",
				Buckets:   []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
			},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pass_duration_seconds",
				Help:      "Matching pass duration by driving side",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"side"},
		),
	}
}

// Register registers all engine metrics with the Prometheus registry
func (c *EngineMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	metrics := []prometheus.Collector{
		c.queueDepth,
		c.eventsTotal,
		c.matchesTotal,
		c.allocationConflict,
		c.matchScore,
		c.passDuration,
	}
	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// SetQueueDepth records the current queue depth
func (c *EngineMetricsCollector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordEvent counts one consumed event
func (c *EngineMetricsCollector) RecordEvent(priority, outcome string) {
	c.eventsTotal.WithLabelValues(priority, outcome).Inc()
}

// RecordMatch counts one created match and its score
func (c *EngineMetricsCollector) RecordMatch(riskStatus string, score float64) {
	c.matchesTotal.WithLabelValues(riskStatus).Inc()
	c.matchScore.Observe(score)
}

// RecordAllocationConflict counts one version conflict
func (c *EngineMetricsCollector) RecordAllocationConflict() {
	c.allocationConflict.Inc()
}

// RecordPass records one matching pass duration
func (c *EngineMetricsCollector) RecordPass(side string, seconds float64) {
	c.passDuration.WithLabelValues(side).Observe(seconds)
}
