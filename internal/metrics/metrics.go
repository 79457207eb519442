// Package metrics exposes the Prometheus counters, gauges, and histograms
// that instrument the HTTP layer and the background subsystems.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the service registers. A nil *Metrics is
// safe to call methods on; every method no-ops, so callers that construct
// a service without metrics enabled pay no overhead.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	UploadBytes   prometheus.Histogram
	UploadTotal   prometheus.Counter
	DownloadTotal prometheus.Counter

	EvictionsTotal   prometheus.Counter
	EvictedBytes     prometheus.Counter
	TTLReapedTotal   prometheus.Counter
	SandboxExecTotal *prometheus.CounterVec

	WALAppends   prometheus.Counter
	SnapshotWrites prometheus.Counter

	ReposGauge prometheus.Gauge
	FilesGauge prometheus.Gauge

	SandboxInFlight prometheus.Gauge
}

// New registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittostore_http_requests_total",
			Help: "Total HTTP requests by route and status class",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittostore_http_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 5000},
		}, []string{"route", "method"}),

		UploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dittostore_upload_bytes",
			Help:    "Distribution of uploaded payload sizes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		UploadTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_uploads_total",
			Help: "Total number of successful uploads",
		}),
		DownloadTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_downloads_total",
			Help: "Total number of successful downloads",
		}),

		EvictionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_evictions_total",
			Help: "Total number of files evicted for quota enforcement",
		}),
		EvictedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_evicted_bytes_total",
			Help: "Total bytes freed by eviction",
		}),
		TTLReapedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_ttl_reaped_total",
			Help: "Total number of files deleted by the TTL reaper",
		}),
		SandboxExecTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittostore_sandbox_exec_total",
			Help: "Total sandboxed command executions by command and outcome",
		}, []string{"command", "outcome"}),

		WALAppends: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_wal_appends_total",
			Help: "Total number of WAL records appended",
		}),
		SnapshotWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "dittostore_snapshot_writes_total",
			Help: "Total number of snapshot writes",
		}),

		ReposGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittostore_repos",
			Help: "Current number of repositories",
		}),
		FilesGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittostore_files",
			Help: "Current number of files across all repositories",
		}),

		SandboxInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittostore_sandbox_inflight",
			Help: "Number of sandboxed commands currently executing",
		}),
	}
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveUpload(bytes int) {
	if m == nil {
		return
	}
	m.UploadTotal.Inc()
	m.UploadBytes.Observe(float64(bytes))
}

func (m *Metrics) ObserveDownload() {
	if m == nil {
		return
	}
	m.DownloadTotal.Inc()
}

func (m *Metrics) ObserveEviction(freedBytes uint64) {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
	m.EvictedBytes.Add(float64(freedBytes))
}

func (m *Metrics) ObserveTTLReap(count int) {
	if m == nil || count == 0 {
		return
	}
	m.TTLReapedTotal.Add(float64(count))
}

func (m *Metrics) ObserveSandboxExec(command, outcome string) {
	if m == nil {
		return
	}
	m.SandboxExecTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObserveWALAppend() {
	if m == nil {
		return
	}
	m.WALAppends.Inc()
}

func (m *Metrics) ObserveSnapshotWrite() {
	if m == nil {
		return
	}
	m.SnapshotWrites.Inc()
}

func (m *Metrics) SetCatalogSize(repos, files int) {
	if m == nil {
		return
	}
	m.ReposGauge.Set(float64(repos))
	m.FilesGauge.Set(float64(files))
}

func (m *Metrics) IncSandboxInFlight() {
	if m == nil {
		return
	}
	m.SandboxInFlight.Inc()
}

func (m *Metrics) DecSandboxInFlight() {
	if m == nil {
		return
	}
	m.SandboxInFlight.Dec()
}
