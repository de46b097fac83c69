// Package metrics provides the Prometheus collectors of the service.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletauth"

// Outcome labels for ledger calls.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeRejected  = "rejected"
	OutcomeCanceled  = "canceled"
)

// Metrics holds all application collectors.
type Metrics struct {
	registry *prometheus.Registry

	challengesIssued prometheus.Counter
	authAttempts     *prometheus.CounterVec
	ledgerCalls      *prometheus.CounterVec
	ledgerRetries    *prometheus.CounterVec
	balanceFetch     prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		challengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Number of authentication challenges issued.",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Number of signature proofs submitted, by result.",
		}, []string{"result"}),
		ledgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_calls_total",
			Help:      "Number of ledger node calls, by method and outcome.",
		}, []string{"method", "outcome"}),
		ledgerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_retries_total",
			Help:      "Number of ledger node call retries, by method.",
		}, []string{"method"}),
		balanceFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_fetch_seconds",
			Help:      "Duration of a full balance aggregation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.challengesIssued,
		m.authAttempts,
		m.ledgerCalls,
		m.ledgerRetries,
		m.balanceFetch,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ChallengeIssued() {
	if m == nil {
		return
	}
	m.challengesIssued.Inc()
}

func (m *Metrics) AuthAttempt(result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) LedgerCall(method, outcome string) {
	if m == nil {
		return
	}
	m.ledgerCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) LedgerRetry(method string) {
	if m == nil {
		return
	}
	m.ledgerRetries.WithLabelValues(method).Inc()
}

func (m *Metrics) BalanceFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.balanceFetch.Observe(d.Seconds())
}
