// Package metrics holds the Prometheus instruments for the credential cache
// and the callback channel. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wecomkit"

// Metrics contains the counters incremented by the application services.
type Metrics struct {
	credentialLookups *prometheus.CounterVec
	credentialFetches *prometheus.CounterVec
	callbacks         *prometheus.CounterVec
	apiCalls          *prometheus.CounterVec
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		credentialLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_lookups_total",
				Help:      "Credential cache lookups by kind and result (hit, miss).",
			}, []string{"kind", "result"}),

		credentialFetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_fetches_total",
				Help:      "Upstream credential fetches by kind and status (ok, error).",
			}, []string{"kind", "status"}),

		callbacks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Inbound callbacks by outcome (ok, signature_mismatch, decryption_failure, malformed).",
			}, []string{"outcome"}),

		apiCalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Authorized platform API calls by path and status.",
			}, []string{"path", "status"}),
	}
}

// IncCredentialLookup records a cache lookup. result is "hit" or "miss".
func (m *Metrics) IncCredentialLookup(kind, result string) {
	if m == nil {
		return
	}
	m.credentialLookups.WithLabelValues(kind, result).Inc()
}

// IncCredentialFetch records an upstream fetch. status is "ok" or "error".
func (m *Metrics) IncCredentialFetch(kind, status string) {
	if m == nil {
		return
	}
	m.credentialFetches.WithLabelValues(kind, status).Inc()
}

// IncCallback records the outcome of an inbound callback.
func (m *Metrics) IncCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

// IncAPICall records an authorized API call.
func (m *Metrics) IncAPICall(path, status string) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(path, status).Inc()
}
