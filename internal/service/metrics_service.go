package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/watch-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	softDeletes     prometheus.Counter
	restores        prometheus.Counter
	casesPurged     *prometheus.CounterVec
	purgeFailures   *prometheus.CounterVec
	purgeDuration   prometheus.Histogram
	lastPurge       prometheus.Gauge
	cleanupFailures prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	softDeleteCount      uint64
	restoreCount         uint64
	purgedCount          uint64
	purgeFailureCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}, []string{"cache"}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		}, []string{"cache", "result"}),
		softDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cases_soft_deleted_total",
			Help: "Cases moved into the archive",
		}),
		restores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cases_restored_total",
			Help: "Archived cases returned to the active set",
		}),
		casesPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cases_purged_total",
			Help: "Cases permanently removed after backup",
		}, []string{"mode"}),
		purgeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_purge_failures_total",
			Help: "Purge attempts that left the case archived",
		}, []string{"mode", "code"}),
		purgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "case_purge_run_duration_seconds",
			Help:    "Duration of scheduled purge runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		lastPurge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "case_purge_last_run_timestamp_seconds",
			Help: "Unix time the last scheduled purge finished",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attachment_cleanup_failures_total",
			Help: "Attachment files that could not be removed after purge",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheLookups,
		m.softDeletes, m.restores, m.casesPurged, m.purgeFailures, m.purgeDuration, m.lastPurge, m.cleanupFailures,
		goroutines, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(cache string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(cache).Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues(cache, "hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues(cache, "miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSoftDelete counts a case entering the archive.
func (m *MetricsService) RecordSoftDelete() {
	if m == nil {
		return
	}
	m.softDeletes.Inc()
	atomic.AddUint64(&m.softDeleteCount, 1)
}

// RecordRestore counts a case leaving the archive.
func (m *MetricsService) RecordRestore() {
	if m == nil {
		return
	}
	m.restores.Inc()
	atomic.AddUint64(&m.restoreCount, 1)
}

// RecordPurge counts a permanently removed case.
func (m *MetricsService) RecordPurge(mode models.PurgeMode) {
	if m == nil {
		return
	}
	m.casesPurged.WithLabelValues(string(mode)).Inc()
	atomic.AddUint64(&m.purgedCount, 1)
}

// RecordPurgeFailure counts a purge attempt that left the case in the archive.
func (m *MetricsService) RecordPurgeFailure(mode models.PurgeMode, code string) {
	if m == nil {
		return
	}
	m.purgeFailures.WithLabelValues(string(mode), code).Inc()
	atomic.AddUint64(&m.purgeFailureCount, 1)
}

// ObservePurgeRun records the duration and completion time of a scheduled purge.
func (m *MetricsService) ObservePurgeRun(duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.purgeDuration.Observe(duration.Seconds())
	m.lastPurge.Set(float64(finishedAt.Unix()))
}

// RecordCleanupFailure counts an attachment file left behind after purge.
func (m *MetricsService) RecordCleanupFailure() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

// Snapshot returns aggregated metrics suitable for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		SoftDeletes:              atomic.LoadUint64(&m.softDeleteCount),
		Restores:                 atomic.LoadUint64(&m.restoreCount),
		CasesPurged:              atomic.LoadUint64(&m.purgedCount),
		PurgeFailures:            atomic.LoadUint64(&m.purgeFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
