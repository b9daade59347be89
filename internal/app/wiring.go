package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/execdash/internal/analytics"
	"github.com/odyssey-erp/execdash/internal/analytics/export"
	jobmetrics "github.com/odyssey-erp/execdash/internal/jobs"
	"github.com/odyssey-erp/execdash/internal/platform/cache"
	"github.com/odyssey-erp/execdash/internal/platform/storage"
	"github.com/odyssey-erp/execdash/internal/publish"
	"github.com/odyssey-erp/execdash/internal/syteline"
	"github.com/odyssey-erp/execdash/jobs"
	"github.com/odyssey-erp/execdash/report"
	"github.com/odyssey-erp/execdash/web"
)

// Runtime holds the long-lived dependencies of one process.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Policy  analytics.Policy
	Service *analytics.Service
	Job     *jobs.DashboardJob
	Redis   *redis.Client
}

// Close releases connections opened by NewRuntime.
func (r *Runtime) Close() {
	if r == nil || r.Redis == nil {
		return
	}
	if err := r.Redis.Close(); err != nil {
		r.Logger.Warn("redis close", slog.Any("error", err))
	}
}

// NewRuntime builds the ERP source, the snapshot service and the dashboard
// job from configuration. metrics may be nil.
func NewRuntime(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *jobmetrics.Metrics) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = NewLogger(cfg)
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	policy, err := analytics.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	rt.Policy = policy

	builder, err := analytics.NewBuilder(policy, cfg.Location())
	if err != nil {
		return nil, err
	}
	client, err := syteline.NewClient(syteline.Config{
		BaseURL:  cfg.IDOBaseURL,
		Tenant:   cfg.IDOTenant,
		Username: cfg.IDOUsername,
		Password: cfg.IDOPassword,
		Timeout:  cfg.IDOTimeout,
	})
	if err != nil {
		return nil, err
	}
	source := syteline.NewSource(client, syteline.RecordCaps{
		Items:          cfg.IDORecordCapItems,
		OrderLines:     cfg.IDORecordCapCoItems,
		ARTransactions: cfg.IDORecordCapARTrans,
		Ledger:         cfg.IDORecordCapLedger,
	})
	rt.Service = analytics.NewService(source, builder, logger)

	tmpl, err := LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}

	sinks, err := rt.sinks(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	publisher := publish.NewPublisher(logger, sinks...)

	job := jobs.NewDashboardJob(rt.Service, publisher, jobs.Outputs{
		JSONPath: cfg.OutputJSON,
		HTMLPath: cfg.OutputHTML,
		PDFPath:  cfg.OutputPDF,
		CSVDir:   cfg.OutputCSVDir,
		Template: tmpl,
	}, logger, metrics)
	if cfg.PDFEnabled() {
		job.PDF = &export.PDFExporter{Renderer: report.NewClient(cfg.GotenbergURL)}
	}
	rt.Job = job
	return rt, nil
}

func (r *Runtime) sinks(ctx context.Context) ([]publish.Sink, error) {
	cfg := r.Config
	var sinks []publish.Sink
	if cfg.S3Enabled() {
		store, err := storage.NewObjectStore(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, publish.NewObjectSink(store, r.Logger))
	}
	if cfg.SnapshotCacheEnabled {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		r.Redis = client
		sinks = append(sinks, publish.NewCacheSink(analytics.NewCache(client, cfg.SnapshotCacheTTL), r.Logger))
	}
	return sinks, nil
}

// LoadTemplate reads the page template from path, or the embedded default
// when path is empty.
func LoadTemplate(path string) ([]byte, error) {
	if path == "" {
		data, err := web.Templates.ReadFile(web.DashboardTemplate)
		if err != nil {
			return nil, fmt.Errorf("app: embedded template: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read template: %w", err)
	}
	return data, nil
}
