package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all metrics
	namespace = "tradecore"
	// Subsystem for engine metrics
	subsystem = "engine"
)

// Registry is the global Prometheus registry for all metrics.
// Nil when metrics are disabled; collectors no-op their Register.
var Registry *prometheus.Registry

// InitRegistry initializes the Prometheus registry.
// Called once at startup when metrics are enabled.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// Handler returns the exposition endpoint for the registry
func Handler() http.Handler {
	if Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
