package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortctl"

// Metrics holds the console's collectors on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	APIRequests    *prometheus.CounterVec
	APIDuration    *prometheus.HistogramVec
	APIInFlight    prometheus.Gauge
	StaleResponses prometheus.Counter
	StorageErrors  *prometheus.CounterVec
	SessionChanges prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests issued, partitioned by status code and method.",
		}, []string{"code", "method"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		APIInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_requests_in_flight",
			Help:      "API requests currently in flight.",
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Page responses discarded because a newer request was issued.",
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Swallowed local storage errors by operation.",
		}, []string{"op"}),
		SessionChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_changes_total",
			Help:      "Session mutations (set or clear).",
		}),
	}

	m.Registry.MustRegister(
		m.APIRequests,
		m.APIDuration,
		m.APIInFlight,
		m.StaleResponses,
		m.StorageErrors,
		m.SessionChanges,
	)
	return m
}

// InstrumentRoundTripper wraps next with request counting, latency and
// in-flight tracking. A nil receiver returns next unchanged.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.APIInFlight,
		promhttp.InstrumentRoundTripperCounter(m.APIRequests,
			promhttp.InstrumentRoundTripperDuration(m.APIDuration, next),
		),
	)
}

// WriteTextfile dumps the registry in the text exposition format, suitable
// for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
