// Package metrics exposes Prometheus collectors for the image pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doc_images"

// Registry holds every collector in this package
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	FetchResults = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_total",
			Help:      "Metadata fetches by outcome category.",
		},
		[]string{"outcome"},
	)

	FetchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_duration_seconds",
			Help:      "Duration of metadata fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SkippedRefs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refs_skipped_total",
			Help:      "Image references rejected before fetching, by rule.",
		},
		[]string{"reason"},
	)

	CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Metadata cache lookups by result (hit, miss, expired).",
		},
		[]string{"result"},
	)

	CacheEvictions = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by the periodic cleanup sweep.",
		},
	)

	DuplicatesDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Images dropped as near-duplicates.",
		},
	)

	Placements = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placements_total",
			Help:      "Placement decisions by position (top, middle, bottom, unplaced).",
		},
		[]string{"position"},
	)

	ExportFetches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_fetch_total",
			Help:      "Export-time image fetches by path (proxy, direct) and result.",
		},
		[]string{"path", "result"},
	)
)

// ObserveFetch records one metadata fetch
func ObserveFetch(outcome string, started time.Time) {
	FetchResults.WithLabelValues(outcome).Inc()
	FetchDuration.Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
