package analytichttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

var testTemplate = []byte("<html><script>let DATA = null;</script></html>")

type stubPDF struct{}

func (stubPDF) RenderSnapshot(ctx context.Context, snap analytics.Snapshot) ([]byte, error) {
	return []byte("%PDF " + snap.LatestDataDate), nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func writeSnapshot(t *testing.T, dir string, snap analytics.Snapshot) string {
	t.Helper()
	path := filepath.Join(dir, "dashboard-data.json")
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestDashboardServedFromFile(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), analytics.Snapshot{
		LatestDataDate: "2026-03-18",
		DailyTrend:     []analytics.DailyTrendPoint{{Date: "2026-03-18", DayOfWeek: "Wednesday"}},
	})
	router := newRouter(NewHandler(nil, Config{JSONPath: path, Template: testTemplate, PDF: stubPDF{}}))

	rr := get(t, router, "/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"LatestDataDate":"2026-03-18"`)
	require.NotContains(t, rr.Body.String(), "let DATA = null;")

	rr = get(t, router, "/dashboard/export.csv?kind=trend")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rr.Body.String(), "Date,Day,Product"))

	rr = get(t, router, "/dashboard/export.csv?kind=bogus")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, router, "/dashboard/pdf")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "%PDF 2026-03-18", rr.Body.String())
}

func TestDashboardPrefersCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := analytics.NewCache(client, time.Hour)
	for _, day := range []string{"2026-03-18", "2026-03-19"} {
		payload, err := json.Marshal(analytics.Snapshot{LatestDataDate: day, RunID: "run-" + day})
		require.NoError(t, err)
		_, err = cache.Publish(context.Background(), payload)
		require.NoError(t, err)
	}

	path := writeSnapshot(t, t.TempDir(), analytics.Snapshot{LatestDataDate: "2026-03-18"})
	router := newRouter(NewHandler(nil, Config{Cache: cache, JSONPath: path, Template: testTemplate}))

	rr := get(t, router, "/dashboard/snapshot.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap analytics.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Equal(t, "2026-03-19", snap.LatestDataDate)
	require.Equal(t, "cache", rr.Header().Get("X-Snapshot-Source"))
	require.Equal(t, "2", rr.Header().Get("X-Snapshot-Version"))
	require.Equal(t, "run-2026-03-19", rr.Header().Get("X-Snapshot-Run"))
}

func TestDashboardFallsBackToFileWhenCacheEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	path := writeSnapshot(t, t.TempDir(), analytics.Snapshot{LatestDataDate: "2026-03-18"})
	router := newRouter(NewHandler(nil, Config{Cache: analytics.NewCache(client, time.Hour), JSONPath: path, Template: testTemplate}))

	rr := get(t, router, "/dashboard/snapshot.json")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "file", rr.Header().Get("X-Snapshot-Source"))
	require.Empty(t, rr.Header().Get("X-Snapshot-Version"))
	require.Empty(t, rr.Header().Get("X-Snapshot-Run"))
}

func TestDashboardNotPublished(t *testing.T) {
	router := newRouter(NewHandler(nil, Config{JSONPath: filepath.Join(t.TempDir(), "missing.json"), Template: testTemplate}))
	require.Equal(t, http.StatusNotFound, get(t, router, "/dashboard").Code)
	require.Equal(t, http.StatusNotFound, get(t, router, "/dashboard/pdf").Code)
}
