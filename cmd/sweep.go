package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/autopark"
)

var (
	sweepDryRun  bool
	sweepLoop    bool
	sweepEnqueue bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Park leads left in status new past autopark.age_days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("sweep"); err != nil {
			return err
		}

		if sweepEnqueue {
			info, err := autopark.Enqueue(ctx, cfg.Scheduler, sweepDryRun)
			if err != nil {
				return err
			}
			zap.L().Info("sweep enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sw := autopark.NewSweeper(st, cfg.AutoPark)
		if sweepLoop {
			sw.Run(ctx, time.Duration(cfg.AutoPark.IntervalHours)*time.Hour)
			return nil
		}

		res, err := sw.Sweep(ctx, sweepDryRun)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "list candidates without parking them")
	sweepCmd.Flags().BoolVar(&sweepLoop, "loop", false, "keep running, sweeping every autopark.interval_hours")
	sweepCmd.Flags().BoolVar(&sweepEnqueue, "enqueue", false, "submit the sweep to the task queue instead of running it")
	sweepCmd.MarkFlagsMutuallyExclusive("loop", "enqueue")
	sweepCmd.MarkFlagsMutuallyExclusive("loop", "dry-run")
	rootCmd.AddCommand(sweepCmd)
}
