package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetricsCollector handles notification router metrics
type NotificationMetricsCollector struct {
	sentTotal    *prometheus.CounterVec
	droppedTotal *prometheus.CounterVec
}

// NewNotificationMetricsCollector creates a new notification metrics collector
func NewNotificationMetricsCollector() *NotificationMetricsCollector {
	return &NotificationMetricsCollector{
		sentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_sent_total",
				Help:      "Notifications delivered by channel",
			},
			[]string{"channel"},
		),
		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_dropped_total",
				Help:      "Notifications dropped before delivery by cause",
			},
			[]string{"cause"},
		),
	}
}

// Register registers all notification metrics with the Prometheus registry
func (c *NotificationMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	metrics := []prometheus.Collector{
		c.sentTotal,
		c.droppedTotal,
	}
	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RecordSent counts one delivered notification
func (c *NotificationMetricsCollector) RecordSent(channel string) {
	c.sentTotal.WithLabelValues(channel).Inc()
}

// RecordDropped counts one dropped notification. Causes: opted_out,
// debounced, rate_limited, over_top_n.
func (c *NotificationMetricsCollector) RecordDropped(cause string) {
	c.droppedTotal.WithLabelValues(cause).Inc()
}
