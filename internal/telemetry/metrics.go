package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aria_api_requests_total",
		Help: "Total HTTP API requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aria_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aria_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// CatalogFetchesTotal counts catalog upstream attempts by strategy and outcome.
	CatalogFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aria_catalog_fetches_total",
		Help: "Catalog fetch attempts by strategy index and outcome.",
	}, []string{"strategy", "outcome"})

	// CatalogFallbacksTotal counts fetches served from the static fallback set.
	CatalogFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aria_catalog_fallbacks_total",
		Help: "Catalog fetches that fell back to the built-in track set.",
	})

	// PlaybackErrorsTotal counts transport errors seen by the engine.
	PlaybackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aria_playback_errors_total",
		Help: "Transport errors handled by the playback engine.",
	})

	// PlaybackCircuitBreaksTotal counts full queue reinitializations.
	PlaybackCircuitBreaksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aria_playback_circuit_breaks_total",
		Help: "Queue reinitializations after repeated consecutive errors.",
	})

	// AnnouncerSpeechesTotal counts completed announcer speaking episodes.
	AnnouncerSpeechesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aria_announcer_speeches_total",
		Help: "Announcer speaking episodes by narration type.",
	}, []string{"type"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
