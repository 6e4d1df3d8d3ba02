// Package metrics exposes Prometheus instrumentation for the fetch
// pipeline. Labels are bounded: outcome is either "success" or one of the
// fixed error kinds, so cardinality stays flat.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// fetchesTotal counts fetch attempts by outcome
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetches_total",
			Help: "Total number of fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// downloadBytesTotal accumulates delivered payload bytes
	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "download_bytes_total",
			Help: "Total bytes of successfully fetched files.",
		},
	)

	// activeDownloads gauges in-flight fetches across all users
	activeDownloads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_downloads",
			Help: "Current number of in-flight downloads.",
		},
	)
)

// RecordFetch counts one fetch attempt with the given outcome
func RecordFetch(outcome string) {
	fetchesTotal.WithLabelValues(outcome).Inc()
}

// AddDownloadBytes accumulates delivered bytes
func AddDownloadBytes(n int64) {
	if n > 0 {
		downloadBytesTotal.Add(float64(n))
	}
}

// IncActive marks a download as started
func IncActive() {
	activeDownloads.Inc()
}

// DecActive marks a download as finished
func DecActive() {
	activeDownloads.Dec()
}

// Handler returns the scrape endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}
