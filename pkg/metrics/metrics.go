package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus metrics for ingestion and backtest runs.
type Recorder struct {
	ingestFetches   *prometheus.CounterVec
	ingestErrors    *prometheus.CounterVec
	rateLimitHits   *prometheus.CounterVec
	snapshotRows    *prometheus.GaugeVec
	backtestRuns    *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	backtestLatency *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ingestFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitlab_ingest_fetches_total",
				Help: "Total number of vendor fetches attempted",
			},
			[]string{"vendor", "endpoint"},
		),
		ingestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitlab_ingest_errors_total",
				Help: "Total number of ingestion errors by type",
			},
			[]string{"vendor", "type"},
		),
		rateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitlab_rate_limit_hits_total",
				Help: "Total number of vendor rate-limit responses",
			},
			[]string{"vendor"},
		),
		snapshotRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pitlab_snapshot_rows",
				Help: "Rows produced by the latest snapshot build",
			},
			[]string{"status"},
		),
		backtestRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitlab_backtest_runs_total",
				Help: "Total number of backtest runs by outcome",
			},
			[]string{"outcome"},
		),
		fetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pitlab_fetch_duration_seconds",
				Help:    "Duration of vendor fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"vendor"},
		),
		backtestLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pitlab_backtest_duration_seconds",
				Help:    "Duration of backtest runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"kind"},
		),
	}
}

// RecordFetch records one vendor fetch attempt.
func (r *Recorder) RecordFetch(vendor, endpoint string) {
	r.ingestFetches.WithLabelValues(vendor, endpoint).Inc()
}

// RecordIngestError records an ingestion error occurrence.
func (r *Recorder) RecordIngestError(vendor, kind string) {
	r.ingestErrors.WithLabelValues(vendor, kind).Inc()
}

// RecordRateLimitHit records a vendor rate-limit response.
func (r *Recorder) RecordRateLimitHit(vendor string) {
	r.rateLimitHits.WithLabelValues(vendor).Inc()
}

// RecordSnapshotRows records row counts from a snapshot build.
func (r *Recorder) RecordSnapshotRows(built, skipped int) {
	r.snapshotRows.WithLabelValues("built").Set(float64(built))
	r.snapshotRows.WithLabelValues("skipped").Set(float64(skipped))
}

// RecordBacktestRun records a completed backtest run.
func (r *Recorder) RecordBacktestRun(outcome string) {
	r.backtestRuns.WithLabelValues(outcome).Inc()
}

// RecordFetchLatency records vendor fetch latency in seconds.
func (r *Recorder) RecordFetchLatency(vendor string, seconds float64) {
	r.fetchLatency.WithLabelValues(vendor).Observe(seconds)
}

// RecordBacktestLatency records backtest duration in seconds.
func (r *Recorder) RecordBacktestLatency(kind string, seconds float64) {
	r.backtestLatency.WithLabelValues(kind).Observe(seconds)
}
