// Package metrics defines the Prometheus collectors of the catalog service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// authorizationDecisions counts gate outcomes by decision kind.
	authorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_authorization_decisions_total",
		Help: "Total number of authorization decisions by outcome",
	}, []string{"decision"})

	// logins counts login attempts by outcome.
	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_logins_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// passwordHashDuration tracks bcrypt latency for hashing and verification.
	passwordHashDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_password_hash_duration_seconds",
		Help:    "Histogram of bcrypt hash and verify latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})

	// eventsPublished counts broker publications by event type and result.
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_events_published_total",
		Help: "Total number of domain events handed to the broker",
	}, []string{"type", "result"})
)

// RecordDecision counts one authorization decision.
func RecordDecision(decision string) {
	authorizationDecisions.WithLabelValues(decision).Inc()
}

// RecordLogin counts one login attempt.
func RecordLogin(outcome string) {
	logins.WithLabelValues(outcome).Inc()
}

// ObservePasswordHash records the duration of a bcrypt operation.
func ObservePasswordHash(op string, d time.Duration) {
	passwordHashDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordEvent counts one publication attempt.
func RecordEvent(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
