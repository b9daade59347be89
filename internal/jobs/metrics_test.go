package jobmetrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("dashboard:generate").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("dashboard:generate").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dashboard:generate", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dashboard:generate", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("dashboard:generate")))
	require.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("dashboard:generate")), 0.0)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveSnapshot(1, 2, 3)
	m.SinkFailed("s3")
	require.NoError(t, m.Track("x").End(nil))
}

func TestObserveSnapshot(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSnapshot(1250.5, 7, 9800)
	m.SinkFailed("redis")
	require.Equal(t, 1250.5, testutil.ToFloat64(m.arTotal))
	require.Equal(t, 7.0, testutil.ToFloat64(m.openInvs))
	require.Equal(t, 9800.0, testutil.ToFloat64(m.mtdSales))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sinkErrors.WithLabelValues("redis")))
}

func TestPushSendsToGateway(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	NewMetrics(reg).Track("dashboard:generate").End(nil)
	require.NoError(t, Push(context.Background(), srv.URL, "execdash", reg))
	require.True(t, strings.HasPrefix(path, "/metrics/job/execdash"), path)

	require.NoError(t, Push(context.Background(), "", "execdash", reg))
}
