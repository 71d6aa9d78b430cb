package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watch-api/internal/models"
)

func TestMetricsServiceSnapshotAndExposition(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/cases", 200, 20*time.Millisecond)
	m.RecordCacheOperation("archive_stats", true, time.Millisecond)
	m.RecordCacheOperation("archive_stats", false, time.Millisecond)
	m.RecordSoftDelete()
	m.RecordRestore()
	m.RecordPurge(models.PurgeScheduled)
	m.RecordPurgeFailure(models.PurgeScheduled, "EXPORT_FAILURE")
	m.ObservePurgeRun(time.Second, time.Now())

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.RequestsTotal)
	require.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	require.Equal(t, uint64(1), snap.SoftDeletes)
	require.Equal(t, uint64(1), snap.Restores)
	require.Equal(t, uint64(1), snap.CasesPurged)
	require.Equal(t, uint64(1), snap.PurgeFailures)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `cases_purged_total{mode="scheduled"} 1`)
	require.Contains(t, w.Body.String(), `case_purge_failures_total{code="EXPORT_FAILURE",mode="scheduled"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordSoftDelete()
	m.RecordPurge(models.PurgeManual)
	require.Equal(t, models.SystemMetrics{}, m.Snapshot())
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
