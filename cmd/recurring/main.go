package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/app"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/config"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/recurring"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

const component = "klarna-recurring"

func main() {
	rootCmd := &cobra.Command{
		Use:           "klarna-recurring",
		Short:         "Charge due Klarna subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(scheduleCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(component, cfg.LogLevel), nil
}

func runCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one charge pass in this process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			today := domain.NewDate(time.Now())
			if date != "" {
				if today, err = domain.ParseDate(date); err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}

			core, err := app.NewCore(cmd.Context(), cfg, component, log)
			if err != nil {
				return err
			}
			defer core.Close()

			summary, err := core.RecurringEngine().Run(cmd.Context(), today)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Charge date as YYYY-MM-DD (default today)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve the recurring charge workflow on Temporal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			core, err := app.NewCore(cmd.Context(), cfg, component, log)
			if err != nil {
				return err
			}
			defer core.Close()

			c, err := dial(cfg, log)
			if err != nil {
				return err
			}
			defer c.Close()

			w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
				MaxConcurrentActivityExecutionSize: 1,
			})
			recurring.Register(w, recurring.NewActivities(core.RecurringEngine()))

			log.Info("starting temporal worker",
				slog.String("address", cfg.TemporalAddress),
				slog.String("namespace", cfg.TemporalNamespace),
				slog.String("task_queue", cfg.TemporalTaskQueue),
			)
			if err := w.Start(); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}
			<-cmd.Context().Done()
			w.Stop()
			log.Info("temporal worker stopped")
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var cron string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Start the cron workflow unless it already runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if cron == "" {
				cron = cfg.RecurringCron
			}

			c, err := dial(cfg, log)
			if err != nil {
				return err
			}
			defer c.Close()

			run, err := recurring.Schedule(cmd.Context(), c, cfg.TemporalTaskQueue, cron)
			if err != nil {
				return err
			}
			log.Info("recurring charge workflow scheduled",
				slog.String("workflow_id", run.GetID()),
				slog.String("run_id", run.GetRunID()),
				slog.String("cron", cron),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&cron, "cron", "", "Cron schedule (default RECURRING_CRON)")
	return cmd
}

func dial(cfg *config.Config, log *slog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	return c, nil
}
