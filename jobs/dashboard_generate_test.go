package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/execdash/internal/analytics"
	jobmetrics "github.com/odyssey-erp/execdash/internal/jobs"
	"github.com/odyssey-erp/execdash/internal/publish"
)

type stubGenerator struct {
	snap  analytics.Snapshot
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context) (analytics.Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

type stubPDF struct{ err error }

func (s stubPDF) RenderSnapshot(ctx context.Context, snap analytics.Snapshot) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7"), nil
}

func sampleSnapshot() analytics.Snapshot {
	return analytics.Snapshot{
		GeneratedAt:    "2026-03-19 06:00:00",
		DataSource:     "SyteLine IDO API (Automated)",
		LatestDataDate: "2026-03-18",
		Period:         analytics.Period{Yesterday: "2026-03-18"},
		Summary: analytics.SalesSummary{
			Yesterday: analytics.SalesRollup{DailySales: analytics.DailySales{Total: 1234.4}, InvoiceCount: 1, Invoices: []analytics.DayInvoice{{InvNum: "1"}}},
			MTD:       analytics.SalesRollup{DailySales: analytics.DailySales{Total: 45678.9}, InvoiceCount: 640},
			YTD:       analytics.SalesRollup{DailySales: analytics.DailySales{Total: 1234567.2}, InvoiceCount: 4210},
		},
		ARaging: analytics.AgingSnapshot{Current: 12500, Total: 12500},
		ARInvoices: analytics.ARInvoices{
			Current: []analytics.OpenInvoice{{InvNum: "12345", Amount: 12500}},
		},
		CashFlowPrediction: []analytics.CashFlowWeek{{Week: "Week of Mar 16", Total: 8750, Confidence: 85}},
	}
}

func newTestJob(t *testing.T, gen SnapshotGenerator) (*DashboardJob, string) {
	t.Helper()
	dir := t.TempDir()
	job := NewDashboardJob(gen, publish.NewPublisher(nil), Outputs{
		JSONPath: filepath.Join(dir, "dashboard-data.json"),
		HTMLPath: filepath.Join(dir, "index.html"),
		Template: []byte("<script>let DATA = null;</script>"),
	}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.newRunID = func() string { return "run-1" }
	return job, dir
}

func TestDashboardJobWritesArtifacts(t *testing.T) {
	gen := &stubGenerator{snap: sampleSnapshot()}
	job, dir := newTestJob(t, gen)
	job.PDF = stubPDF{}
	job.Outputs.PDFPath = filepath.Join(dir, "dashboard.pdf")
	job.Outputs.CSVDir = filepath.Join(dir, "csv")

	snap, err := job.Run(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	require.Equal(t, "run-1", snap.RunID)

	data, err := os.ReadFile(filepath.Join(dir, "dashboard-data.json"))
	require.NoError(t, err)
	var decoded analytics.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "run-1", decoded.RunID)

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(html), "<script>let DATA = {"))

	for _, name := range []string{"dashboard.pdf", "csv/daily-trend.csv", "csv/ar-invoices.csv", "csv/cash-flow-forecast.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestDashboardJobFailsWithoutWriting(t *testing.T) {
	boom := errors.New("syteline: token: unauthorized")
	job, dir := newTestJob(t, &stubGenerator{err: boom})

	_, err := job.Run(context.Background(), "")
	require.ErrorIs(t, err, boom)
	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)
}

func TestDashboardJobRenderFailureWritesNothing(t *testing.T) {
	job, dir := newTestJob(t, &stubGenerator{snap: sampleSnapshot()})
	job.PDF = stubPDF{err: errors.New("gotenberg down")}
	job.Outputs.PDFPath = filepath.Join(dir, "dashboard.pdf")

	_, err := job.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)

	job.PDF = nil
	job.Outputs.Template = []byte("<html></html>")
	_, err = job.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	entries, _ = os.ReadDir(dir)
	require.Empty(t, entries)
}

func TestDashboardJobHandle(t *testing.T) {
	gen := &stubGenerator{snap: sampleSnapshot()}
	job, _ := newTestJob(t, gen)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardGenerate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, gen.calls)

	task, err := NewDashboardGenerateTask(DashboardGeneratePayload{Trigger: TriggerSchedule}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, gen.calls)

	var nilJob *DashboardJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}

func TestNewDashboardGenerateTaskDefaultsTrigger(t *testing.T) {
	task, err := NewDashboardGenerateTask(DashboardGeneratePayload{}, 0)
	require.NoError(t, err)
	require.Equal(t, TaskDashboardGenerate, task.Type())

	var payload DashboardGeneratePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, TriggerManual, payload.Trigger)
}

func TestSummaryLines(t *testing.T) {
	lines := SummaryLines(sampleSnapshot())
	require.Equal(t, []string{
		"Latest data: 2026-03-18",
		"Yesterday (2026-03-18): $1,234 (1 invoices)",
		"MTD: $45,679 (640 invoices)",
		"YTD: $1,234,567 (4,210 invoices)",
		"AR Total: $12,500 (1 open invoices)",
		"1-Week Cash Flow Forecast:",
		"  Week of Mar 16: $8,750 (85% confidence)",
	}, lines)
}

func TestSummaryLinesLabelFollowsForecastLength(t *testing.T) {
	snap := sampleSnapshot()
	snap.CashFlowPrediction = make([]analytics.CashFlowWeek, 6)
	require.Contains(t, SummaryLines(snap), "6-Week Cash Flow Forecast:")

	snap.CashFlowPrediction = nil
	for _, line := range SummaryLines(snap) {
		require.NotContains(t, line, "Cash Flow Forecast")
	}
}
