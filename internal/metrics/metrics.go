// Package metrics exposes Prometheus collectors for pagewatch runs and writes
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so a run only exports its own series.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal            *prometheus.CounterVec
	changesTotal         *prometheus.CounterVec
	contentBytes         *prometheus.GaugeVec
	lastRunTimestamp     *prometheus.GaugeVec
	fetchDurationSeconds *prometheus.HistogramVec
}

// New registers the pagewatch collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagewatch_runs_total",
				Help: "Total number of runs, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		changesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagewatch_changes_total",
				Help: "Total number of runs that detected a content change, labeled by site.",
			},
			[]string{"site"},
		),
		contentBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagewatch_content_length",
				Help: "Length in characters of the last normalized extraction, labeled by site.",
			},
			[]string{"site"},
		),
		lastRunTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagewatch_last_run_timestamp_seconds",
				Help: "Unix time of the last run, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		fetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagewatch_fetch_duration_seconds",
				Help:    "Histogram of page fetch and extraction latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"site"},
		),
	}
}

// Run is the outcome of one invocation as seen by the metrics.
type Run struct {
	URL    string
	Status string
	// Changed and Length are only meaningful for successful runs.
	Changed bool
	Length  int
	// Fetch is zero when the run never reached the fetcher.
	Fetch time.Duration
	At    time.Time
}

// ObserveRun records one run.
func (r *Recorder) ObserveRun(run Run) {
	site := SanitizeSite(run.URL)
	r.runsTotal.WithLabelValues(site, run.Status).Inc()
	r.lastRunTimestamp.WithLabelValues(site, run.Status).Set(float64(run.At.Unix()))
	if run.Fetch > 0 {
		r.fetchDurationSeconds.WithLabelValues(site).Observe(run.Fetch.Seconds())
	}
	if run.Status != "ok" {
		return
	}
	if run.Changed {
		r.changesTotal.WithLabelValues(site).Inc()
	}
	r.contentBytes.WithLabelValues(site).Set(float64(run.Length))
}

// Gatherer exposes the registry, e.g. for tests or a push gateway.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes every metric to path for the node_exporter
// textfile collector. path should end in ".prom".
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
