// Package metrics exposes token and sign-in counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokengate"

// Registry holds the application metrics on a private Prometheus registry,
// so tests can create as many as they like.
type Registry struct {
	registry *prometheus.Registry

	TokensIssued       prometheus.Counter
	TokenVerifications *prometheus.CounterVec
	SignIns            *prometheus.CounterVec
}

// NewRegistry creates a registry with the auth counters plus the Go runtime
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Number of identity tokens issued.",
		}),
		TokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Number of token verifications by result.",
		}, []string{"result"}),
		SignIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signins_total",
			Help:      "Number of sign-in attempts by method and result.",
		}, []string{"method", "result"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.TokensIssued,
		r.TokenVerifications,
		r.SignIns,
	)
	return r
}

// TokenIssued counts one issued token.
func (r *Registry) TokenIssued() {
	r.TokensIssued.Inc()
}

// TokenVerified counts one verification with the given outcome label.
func (r *Registry) TokenVerified(result string) {
	r.TokenVerifications.WithLabelValues(result).Inc()
}

// SignIn counts one sign-in attempt.
func (r *Registry) SignIn(method, result string) {
	r.SignIns.WithLabelValues(method, result).Inc()
}

// Handler serves the registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
