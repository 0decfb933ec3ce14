package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhs-school/fee-payments/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep the fee payment ledger consistent with the gateway.`,
}

// Reconciliation worker command
var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-verify stale pending payments",
	Long:  `Re-verify fee payments that stayed pending because the gateway webhook never arrived.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startReconcileWorker(); err != nil {
			fmt.Fprintf(os.Stderr, "reconcile worker: %v\n", err)
			os.Exit(1)
		}
	},
}

var (
	reconcileOnce     bool
	reconcileSchedule string
	reconcileBatch    int
	reconcileWorkers  int
)

func startReconcileWorker() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(cfg)
	log := logger.LoggerWrapper()

	// Use command line flags if provided, otherwise use config values
	cfg.Reconciler.Schedule = getStringFlag(reconcileSchedule, cfg.Reconciler.Schedule)
	cfg.Reconciler.BatchSize = getIntFlag(reconcileBatch, cfg.Reconciler.BatchSize)
	cfg.Reconciler.Workers = getIntFlag(reconcileWorkers, cfg.Reconciler.Workers)

	app, err := newApplication(cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := app.reconciler()

	if reconcileOnce {
		summary, err := reconciler.RunOnce(ctx)
		if err != nil {
			return err
		}
		if err := app.bus.Wait(context.Background()); err != nil {
			log.Warn("event handlers did not drain", "error", err)
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	scheduler, err := reconciler.Schedule(ctx, cfg.Reconciler.Schedule)
	if err != nil {
		return err
	}
	scheduler.Start()

	log.Info("reconcile worker is running. Press Ctrl+C to stop.",
		"schedule", cfg.Reconciler.Schedule,
		"batch_size", cfg.Reconciler.BatchSize,
		"workers", cfg.Reconciler.Workers)

	<-ctx.Done()
	log.Info("shutting down reconcile worker")

	<-scheduler.Stop().Done()
	if err := app.bus.Wait(context.Background()); err != nil {
		log.Warn("event handlers did not drain", "error", err)
	}

	log.Info("reconcile worker shutdown complete")
	return nil
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single sweep, print its summary and exit")
	reconcileWorkerCmd.Flags().StringVar(&reconcileSchedule, "schedule", "", "cron schedule (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&reconcileBatch, "batch-size", 0, "maximum payments per sweep (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&reconcileWorkers, "workers", 0, "concurrent verifications (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)
}
