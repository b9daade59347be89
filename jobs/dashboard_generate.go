package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/execdash/internal/analytics"
	"github.com/odyssey-erp/execdash/internal/analytics/export"
	jobmetrics "github.com/odyssey-erp/execdash/internal/jobs"
	"github.com/odyssey-erp/execdash/internal/publish"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotGenerator produces a fresh dashboard snapshot.
type SnapshotGenerator interface {
	Generate(ctx context.Context) (analytics.Snapshot, error)
}

// SnapshotPDFRenderer turns a snapshot into a printable PDF.
type SnapshotPDFRenderer interface {
	RenderSnapshot(ctx context.Context, snap analytics.Snapshot) ([]byte, error)
}

// ArtifactPublisher stores rendered artefacts.
type ArtifactPublisher interface {
	Publish(ctx context.Context, artifacts []publish.Artifact) error
}

// Outputs names where each artefact goes. Empty paths skip the artefact,
// except JSONPath and HTMLPath which are always written.
type Outputs struct {
	JSONPath string
	HTMLPath string
	PDFPath  string
	CSVDir   string
	Template []byte
}

// DashboardJob runs one fetch, render and publish cycle.
type DashboardJob struct {
	Generator SnapshotGenerator
	Publisher ArtifactPublisher
	PDF       SnapshotPDFRenderer
	Outputs   Outputs
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	newRunID  func() string
}

// NewDashboardJob wires dependencies for the dashboard handler.
func NewDashboardJob(generator SnapshotGenerator, publisher ArtifactPublisher, outputs Outputs, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardJob {
	return &DashboardJob{
		Generator: generator,
		Publisher: publisher,
		Outputs:   outputs,
		Logger:    logger,
		Metrics:   metrics,
		newRunID:  uuid.NewString,
	}
}

// Handle processes dashboard tasks from the queue.
func (j *DashboardJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("dashboard: handler not configured")
	}
	var payload DashboardGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("dashboard: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload.Trigger)
	return err
}

// Run generates the snapshot, renders every artefact in memory and publishes
// them. Nothing is written unless every artefact rendered.
func (j *DashboardJob) Run(ctx context.Context, trigger string) (snap analytics.Snapshot, resultErr error) {
	if j == nil || j.Generator == nil || j.Publisher == nil {
		return snap, errors.New("dashboard: job not configured")
	}
	if trigger == "" {
		trigger = TriggerManual
	}
	tracker := j.metrics().Track(TaskDashboardGenerate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	runID := j.runID()
	logger := j.logger().With(slog.String("run_id", runID), slog.String("trigger", trigger))
	start := time.Now()
	logger.Info("generating dashboard")

	snap, err := j.Generator.Generate(ctx)
	if err != nil {
		logger.Error("generate snapshot", slog.Any("error", err))
		return snap, err
	}
	snap.RunID = runID

	artifacts, err := j.render(ctx, snap)
	if err != nil {
		logger.Error("render artifacts", slog.Any("error", err))
		return snap, err
	}

	if err := j.Publisher.Publish(ctx, artifacts); err != nil {
		var sinkErr *publish.SinkError
		if errors.As(err, &sinkErr) {
			j.metrics().SinkFailed(sinkErr.Sink)
		}
		logger.Error("publish artifacts", slog.Any("error", err))
		return snap, err
	}

	j.metrics().ObserveSnapshot(snap.ARaging.Total, snap.OpenInvoiceCount(), snap.Summary.MTD.Total)
	for _, line := range SummaryLines(snap) {
		logger.Info(line)
	}
	logger.Info("dashboard generation complete", slog.Int("artifacts", len(artifacts)), slog.Duration("duration", time.Since(start)))
	return snap, nil
}

func (j *DashboardJob) render(ctx context.Context, snap analytics.Snapshot) ([]publish.Artifact, error) {
	out := j.Outputs
	if out.JSONPath == "" || out.HTMLPath == "" {
		return nil, errors.New("dashboard: json and html output paths are required")
	}

	data, err := export.MarshalSnapshot(snap)
	if err != nil {
		return nil, err
	}
	doc, err := export.RenderDocument(out.Template, snap)
	if err != nil {
		return nil, fmt.Errorf("dashboard: render html: %w", err)
	}
	artifacts := []publish.Artifact{
		{Kind: publish.KindSnapshot, Path: out.JSONPath, ContentType: "application/json", Data: data},
		{Kind: publish.KindDocument, Path: out.HTMLPath, ContentType: "text/html; charset=utf-8", Data: doc},
	}

	if out.PDFPath != "" && j.PDF != nil {
		pdf, err := j.PDF.RenderSnapshot(ctx, snap)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, publish.Artifact{Kind: publish.KindPDF, Path: out.PDFPath, ContentType: "application/pdf", Data: pdf})
	}

	if out.CSVDir != "" {
		csvs, err := renderCSVs(out.CSVDir, snap)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, csvs...)
	}
	return artifacts, nil
}

func renderCSVs(dir string, snap analytics.Snapshot) ([]publish.Artifact, error) {
	writers := []struct {
		name  string
		write func(*bytes.Buffer) error
	}{
		{"daily-trend.csv", func(b *bytes.Buffer) error { return export.WriteTrendCSV(b, snap.DailyTrend) }},
		{"ar-invoices.csv", func(b *bytes.Buffer) error { return export.WriteARInvoicesCSV(b, snap.ARInvoices) }},
		{"cash-flow-forecast.csv", func(b *bytes.Buffer) error { return export.WriteForecastCSV(b, snap.CashFlowPrediction) }},
	}
	artifacts := make([]publish.Artifact, 0, len(writers))
	for _, w := range writers {
		var buf bytes.Buffer
		if err := w.write(&buf); err != nil {
			return nil, fmt.Errorf("dashboard: render %s: %w", w.name, err)
		}
		artifacts = append(artifacts, publish.Artifact{
			Kind:        publish.KindCSV,
			Path:        filepath.Join(dir, w.name),
			ContentType: "text/csv",
			Data:        buf.Bytes(),
		})
	}
	return artifacts, nil
}

func (j *DashboardJob) runID() string {
	if j.newRunID != nil {
		return j.newRunID()
	}
	return uuid.NewString()
}

func (j *DashboardJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardGenerate))
	}
	return slog.Default().With(slog.String("job", TaskDashboardGenerate))
}

func (j *DashboardJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
