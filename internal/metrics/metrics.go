// Package metrics exposes the Prometheus series recorded by torrplay.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeStarted  = "started"
	OutcomeFailed   = "failed"
	OutcomeOK       = "ok"
	OutcomeError    = "error"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrplay_dispatch_total",
		Help: "Playback dispatches by strategy and outcome",
	}, []string{"strategy", "outcome"})

	environmentResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrplay_environment_resolved_total",
		Help: "Environment classifications by result",
	}, []string{"environment"})

	embeddedSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "torrplay_embedded_sessions_active",
		Help: "Embedded playback sessions currently owning the media engine",
	})

	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrplay_catalog_requests_total",
		Help: "Catalog API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
)

// RecordDispatch counts one terminal dispatch outcome.
func RecordDispatch(strategy, outcome string) {
	dispatchTotal.WithLabelValues(normalizeStrategy(strategy), normalizeOutcome(outcome)).Inc()
}

func RecordEnvironment(environment string) {
	environmentResolvedTotal.WithLabelValues(strings.TrimSpace(environment)).Inc()
}

func EmbeddedSessionStarted() { embeddedSessionsActive.Inc() }
func EmbeddedSessionEnded()   { embeddedSessionsActive.Dec() }

func RecordCatalogRequest(endpoint, outcome string) {
	catalogRequestsTotal.WithLabelValues(endpoint, normalizeOutcome(outcome)).Inc()
}

func normalizeStrategy(strategy string) string {
	switch s := strings.ToLower(strings.TrimSpace(strategy)); s {
	case "mobile_intent", "tv_media_service", "browser_redirect", "embedded", "none":
		return s
	default:
		return "unknown"
	}
}

func normalizeOutcome(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case OutcomeAccepted, OutcomeRejected, OutcomeInvalid, OutcomeStarted, OutcomeFailed, OutcomeOK, OutcomeError:
		return o
	default:
		return "unknown"
	}
}
