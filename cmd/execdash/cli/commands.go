// Package cli holds the execdash subcommands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/execdash/internal/analytics"
	"github.com/odyssey-erp/execdash/internal/analytics/export"
	"github.com/odyssey-erp/execdash/internal/app"
	jobmetrics "github.com/odyssey-erp/execdash/internal/jobs"
	"github.com/odyssey-erp/execdash/internal/observability"
	"github.com/odyssey-erp/execdash/internal/platform/cache"
	"github.com/odyssey-erp/execdash/jobs"
)

// NewRootCommand assembles the command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "execdash",
		Short:   "Executive sales and cash dashboard generator",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCommand(), newEnqueueCommand(), newQueueCommand(), newMappingCommand())
	return root
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Fetch ERP data and write the dashboard once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			metrics := observability.NewMetrics()
			jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

			rt, err := app.NewRuntime(ctx, cfg, logger, jobMetrics)
			if err != nil {
				logger.Error("init runtime", slog.Any("error", err))
				return err
			}
			defer rt.Close()

			_, runErr := rt.Job.Run(ctx, jobs.TriggerManual)
			if err := jobmetrics.Push(context.WithoutCancel(ctx), cfg.PushgatewayURL, "execdash", metrics.Gatherer()); err != nil {
				logger.Warn("push metrics", slog.Any("error", err))
			}
			return runErr
		},
	}
}

func newEnqueueCommand() *cobra.Command {
	var requestedBy string
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a dashboard run for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			opts, err := redisOpts(cfg.RedisAddr)
			if err != nil {
				return err
			}
			c := NewJobsCLI(opts)
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), requestedBy, cfg.DashboardTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s) on %s\n", info.ID, info.Type, info.Queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestedBy, "by", os.Getenv("USER"), "who requested the run")
	return cmd
}

func newQueueCommand() *cobra.Command {
	var scheduled int
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show queue depth and upcoming scheduled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			opts, err := redisOpts(cfg.RedisAddr)
			if err != nil {
				return err
			}
			c := NewJobsCLI(opts)
			defer c.Close()
			return PrintQueue(cmd.Context(), cmd.OutOrStdout(), c, scheduled)
		},
	}
	cmd.Flags().IntVar(&scheduled, "scheduled", 10, "number of scheduled tasks to list")
	return cmd
}

// PrintQueue writes the queue status as JSON followed by scheduled task IDs.
func PrintQueue(ctx context.Context, w io.Writer, c *JobsCLI, scheduled int) error {
	status, err := c.InspectQueue(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	tasks, err := c.ListScheduled(ctx, scheduled)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "scheduled %s %s at %s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func newMappingCommand() *cobra.Command {
	var (
		policyFile string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Write the data-mapping sheet describing every dashboard figure",
		RunE: func(cmd *cobra.Command, args []string) error {
			if policyFile == "" {
				policyFile = os.Getenv("POLICY_FILE")
			}
			if output == "" || output == "-" {
				return WriteMapping(cmd.OutOrStdout(), policyFile)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := WriteMapping(f, policyFile); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy", "", "policy YAML file (defaults to POLICY_FILE)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path, stdout when empty")
	return cmd
}

// WriteMapping renders the mapping CSV for the policy at path.
func WriteMapping(w io.Writer, policyPath string) error {
	policy, err := analytics.LoadPolicy(policyPath)
	if err != nil {
		return err
	}
	return export.WriteMappingCSV(w, export.DataMapping(policy))
}

func redisOpts(addr string) (asynq.RedisClientOpt, error) {
	opts, err := cache.Options(addr)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB, TLSConfig: opts.TLSConfig}, nil
}
