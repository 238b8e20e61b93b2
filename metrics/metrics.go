// Package metrics holds the Prometheus instrumentation for the endpoint and
// the authorization service. All methods are nil-safe so callers can run
// without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Endpoint provides observability for the card endpoint loop.
type Endpoint struct {
	// Session outcomes by kind
	Outcomes *prometheus.CounterVec

	// Reads dropped by the debounce filter
	Suppressed prometheus.Counter

	// Transactions attempted while the link stayed down
	LinkFailures prometheus.Counter

	// Authorization round-trip latency
	SessionDuration prometheus.Histogram
}

// NewEndpoint registers the endpoint metrics with reg.
func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	f := promauto.With(reg)
	return &Endpoint{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gocardgate_endpoint_outcomes_total",
			Help: "Authorization session outcomes by kind",
		}, []string{"outcome"}), // authorized, denied, unrecognized, connection_failed, timeout

		Suppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "gocardgate_endpoint_suppressed_reads_total",
			Help: "Card reads suppressed by the debounce cooldown",
		}),

		LinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "gocardgate_endpoint_link_failures_total",
			Help: "Transactions started while the link could not be brought up",
		}),

		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gocardgate_endpoint_session_duration_seconds",
			Help:    "Duration of authorization sessions including connect",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementOutcome records a session outcome.
func (m *Endpoint) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementSuppressed records a debounced read.
func (m *Endpoint) IncrementSuppressed() {
	if m != nil {
		m.Suppressed.Inc()
	}
}

// IncrementLinkFailure records a failed link recovery.
func (m *Endpoint) IncrementLinkFailure() {
	if m != nil {
		m.LinkFailures.Inc()
	}
}

// ObserveSession records the duration of one session.
func (m *Endpoint) ObserveSession(d time.Duration) {
	if m != nil {
		m.SessionDuration.Observe(d.Seconds())
	}
}

// Authd provides observability for the authorization service.
type Authd struct {
	Requests  prometheus.Counter
	Decisions *prometheus.CounterVec
}

// NewAuthd registers the service metrics with reg.
func NewAuthd(reg prometheus.Registerer) *Authd {
	f := promauto.With(reg)
	return &Authd{
		Requests: f.NewCounter(prometheus.CounterOpts{
			Name: "gocardgate_authd_requests_total",
			Help: "Connections accepted by the verdict server",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gocardgate_authd_decisions_total",
			Help: "Verdicts returned by the verdict server",
		}, []string{"verdict"}),
	}
}

// IncrementRequest records an accepted connection.
func (m *Authd) IncrementRequest() {
	if m != nil {
		m.Requests.Inc()
	}
}

// IncrementDecision records a verdict.
func (m *Authd) IncrementDecision(verdict string) {
	if m != nil {
		m.Decisions.WithLabelValues(verdict).Inc()
	}
}
