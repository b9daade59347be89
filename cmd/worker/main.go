package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/execdash/internal/analytics"
	analytichttp "github.com/odyssey-erp/execdash/internal/analytics/http"
	"github.com/odyssey-erp/execdash/internal/analytics/export"
	"github.com/odyssey-erp/execdash/internal/app"
	jobmetrics "github.com/odyssey-erp/execdash/internal/jobs"
	"github.com/odyssey-erp/execdash/internal/observability"
	"github.com/odyssey-erp/execdash/internal/platform/cache"
	"github.com/odyssey-erp/execdash/jobs"
	"github.com/odyssey-erp/execdash/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	rt, err := app.NewRuntime(ctx, cfg, logger, jobMetrics)
	if err != nil {
		logger.Error("init runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()

	redisOpt, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	asynqOpts := asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB, TLSConfig: redisOpt.TLSConfig}

	scheduledTask, err := jobs.NewDashboardGenerateTask(jobs.DashboardGeneratePayload{Trigger: jobs.TriggerSchedule}, cfg.DashboardTimeout)
	if err != nil {
		logger.Error("build dashboard task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynqOpts,
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardGenerate, Handler: rt.Job.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DashboardCron, Task: scheduledTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynqOpts)
	defer inspector.Close()

	tmpl, err := app.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		logger.Error("load template", slog.Any("error", err))
		os.Exit(1)
	}
	var pdfClient *report.Client
	dashboardCfg := analytichttp.Config{JSONPath: cfg.OutputJSON, Template: tmpl}
	if rt.Redis != nil {
		dashboardCfg.Cache = analytics.NewCache(rt.Redis, cfg.SnapshotCacheTTL)
	}
	if cfg.GotenbergURL != "" {
		pdfClient = report.NewClient(cfg.GotenbergURL)
		dashboardCfg.PDF = &export.PDFExporter{Renderer: pdfClient}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		JobHandler:       jobs.NewHandler(inspector, logger),
		ReportHandler:    report.NewHandler(pdfClient, logger),
		DashboardHandler: analytichttp.NewHandler(logger, dashboardCfg),
		Metrics:          metrics,
	})
	server := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      router,
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("worker started", slog.String("cron", cfg.DashboardCron), slog.String("timezone", cfg.AppTimezone))
		return worker.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
