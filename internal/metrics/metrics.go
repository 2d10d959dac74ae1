// Package metrics holds the Prometheus collectors of the storefinder and the
// small recording helpers the rest of the code calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefinder"

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

var (
	HTTPRequestsTotal    = counterVec("http_requests_total", "HTTP requests by mux route and status.", "method", "route", "status_code")
	HTTPRequestDuration  = histogramVec("http_request_duration_seconds", "HTTP request latency.", prometheus.DefBuckets, "method", "route")
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests being served.",
	})

	JobsTotal    = counterVec("jobs_total", "Background jobs by type and outcome.", "type", "outcome")
	JobDuration  = histogramVec("job_duration_seconds", "Background job run time.", []float64{1, 5, 15, 60, 300, 900, 1800}, "type")
	JobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Background jobs being run.",
	}, []string{"type"})

	ImportRowsTotal      = counterVec("import_rows_total", "Rows of committed imports by outcome.", "outcome")
	ImportBatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_batch_fallbacks_total",
		Help:      "Insert batches retried row by row after a batch error.",
	})
	DuplicateChecksTotal = counterVec("duplicate_checks_total", "Duplicate lookups against stored locations.", "status")

	GeocodeLookupsTotal = counterVec("geocode_lookups_total", "Forward geocoding lookups by result.", "status")
	RouteRequestsTotal  = counterVec("route_requests_total", "Driving route requests by result.", "status")
)

// Job outcomes.
const (
	JobCompleted = "completed"
	JobRetrying  = "retrying"
	JobFailed    = "failed"
)

// StartJob marks a job of jobType as running. The returned func must be
// called exactly once with the outcome.
func StartJob(jobType string) func(outcome string) {
	start := time.Now()
	JobsInFlight.WithLabelValues(jobType).Inc()
	return func(outcome string) {
		JobsInFlight.WithLabelValues(jobType).Dec()
		JobsTotal.WithLabelValues(jobType, outcome).Inc()
		JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
	}
}

// ImportFinished adds the row outcomes of one committed import.
func ImportFinished(created, updated, skipped, failed int) {
	for outcome, n := range map[string]int{"created": created, "updated": updated, "skipped": skipped, "failed": failed} {
		ImportRowsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// GeocodeLookup counts a lookup: found, not_found, cached or error.
func GeocodeLookup(status string) { GeocodeLookupsTotal.WithLabelValues(status).Inc() }

// RouteRequest counts a route: ok, no_route, superseded or error.
func RouteRequest(status string) { RouteRequestsTotal.WithLabelValues(status).Inc() }

func DuplicateCheck(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	DuplicateChecksTotal.WithLabelValues(status).Inc()
}
